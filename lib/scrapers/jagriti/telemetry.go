package jagriti

import (
	"jagriti-backend/lib/telemetry"
)

const (
	report_client_fetch            = "client.fetch"
	report_client_captcha          = "client.captcha"
	report_identifier_cache_load   = "identifier_cache.load"
	report_identifier_cache_states = "identifier_cache.states"
	report_normalizer              = "normalizer.normalize"
	report_searcher_search         = "searcher.search"
	report_portal_warm             = "portal.warm"
)

var tracer = telemetry.Tracer("jagriti.lib.scrapers.jagriti")
var meter = telemetry.Meter("jagriti.lib.scrapers.jagriti")

var attemptCounter, _ = meter.Int64Counter(
	"jagriti.transport.attempts",
)
var retryCounter, _ = meter.Int64Counter(
	"jagriti.transport.retries",
)
var captchaCounter, _ = meter.Int64Counter(
	"jagriti.transport.captcha",
)
var cacheFetchCounter, _ = meter.Int64Counter(
	"jagriti.identifier_cache.fetches",
)
var skippedRowCounter, _ = meter.Int64Counter(
	"jagriti.normalizer.skipped_rows",
)
var searchDuration, _ = meter.Float64Histogram(
	"jagriti.search.duration",
)
