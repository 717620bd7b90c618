package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"jagriti-backend/lib/scrapers/jagriti"
	"jagriti-backend/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		printError(err)
		cancel()
		os.Exit(1)
	}
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, err)
	failure, ok := jagriti.AsError(err)
	if !ok {
		return
	}
	if len(failure.Suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "did you mean: %s\n", strings.Join(failure.Suggestions, ", "))
	}
	if failure.IncidentID != "" {
		fmt.Fprintf(os.Stderr, "incident: %s\n", failure.IncidentID)
	}
	if failure.Snippet != "" && failure.Code == jagriti.CodeParse {
		fmt.Fprintf(os.Stderr, "body: %s\n", failure.Snippet)
	}
}

// the portal built by the root command's pre-run
type portalKey struct{}

func withPortal(ctx context.Context, portal *jagriti.Portal) context.Context {
	return context.WithValue(ctx, portalKey{}, portal)
}

func getPortal(ctx context.Context) *jagriti.Portal {
	return ctx.Value(portalKey{}).(*jagriti.Portal)
}
