package casesearch

import (
	"context"
	"errors"
	"net/http"

	"jagriti-backend/lib/scrapers/jagriti"
	"jagriti-backend/lib/serviceutil"

	"connectrpc.com/connect"
)

const (
	ServiceName = "jagriti.v1.CaseSearchService"

	ListStatesProcedure      = "/" + ServiceName + "/ListStates"
	ListCommissionsProcedure = "/" + ServiceName + "/ListCommissions"
	SearchProcedure          = "/" + ServiceName + "/Search"
)

type ListStatesRequest struct{}

type ListStatesResponse struct {
	States []jagriti.State `json:"states"`
}

type ListCommissionsRequest struct {
	// State is a state id or name.
	State string `json:"state"`
}

type ListCommissionsResponse struct {
	StateID     string               `json:"state_id"`
	Commissions []jagriti.Commission `json:"commissions"`
}

type SearchRequest struct {
	State       string `json:"state"`
	Commission  string `json:"commission"`
	SearchValue string `json:"search_value"`
	// SearchKind accepts the same spellings as the REST routes.
	SearchKind string `json:"search_kind"`
}

// rpcHandlers returns the connect procedures keyed by path, they speak the
// connect protocol with JSON payloads.
func (s *Service) rpcHandlers() map[string]http.Handler {
	options := []connect.HandlerOption{
		connect.WithCodec(serviceutil.JSONCodec{}),
		connect.WithInterceptors(
			serviceutil.NewConnectOtelInterceptor(),
			serviceutil.VerifyAccessTokenInterceptor(s.options.AdminToken),
		),
	}
	return map[string]http.Handler{
		ListStatesProcedure:      connect.NewUnaryHandler(ListStatesProcedure, s.ListStates, options...),
		ListCommissionsProcedure: connect.NewUnaryHandler(ListCommissionsProcedure, s.ListCommissions, options...),
		SearchProcedure:          connect.NewUnaryHandler(SearchProcedure, s.Search, options...),
	}
}

func (s *Service) ListStates(ctx context.Context, req *connect.Request[ListStatesRequest]) (*connect.Response[ListStatesResponse], error) {
	states, err := s.portal.States(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListStatesResponse{States: states}), nil
}

func (s *Service) ListCommissions(ctx context.Context, req *connect.Request[ListCommissionsRequest]) (*connect.Response[ListCommissionsResponse], error) {
	state, commissions, err := s.portal.Commissions(ctx, req.Msg.State)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&ListCommissionsResponse{
		StateID:     state.ID,
		Commissions: commissions,
	}), nil
}

func (s *Service) Search(ctx context.Context, req *connect.Request[SearchRequest]) (*connect.Response[jagriti.SearchResult], error) {
	kind, err := jagriti.ParseSearchKind(req.Msg.SearchKind)
	if err != nil {
		return nil, connectError(err)
	}
	res, err := s.portal.Search(ctx, jagriti.Query{
		State:       req.Msg.State,
		Commission:  req.Msg.Commission,
		SearchValue: req.Msg.SearchValue,
		Kind:        kind,
	})
	s.metrics.observeSearch(kind, err)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&res), nil
}

// connectError converts err into a *connect.Error, the taxonomy code, stage
// and incident id travel as error metadata.
func connectError(err error) *connect.Error {
	if errors.Is(err, context.Canceled) {
		return connect.NewError(connect.CodeCanceled, err)
	}

	var code connect.Code
	switch jagriti.CodeOf(err) {
	case jagriti.CodeValidation:
		code = connect.CodeInvalidArgument
	case jagriti.CodeNotFound:
		code = connect.CodeNotFound
	case jagriti.CodeCaptcha:
		code = connect.CodeUnavailable
	case jagriti.CodeTimeout:
		code = connect.CodeDeadlineExceeded
	case jagriti.CodeParse, jagriti.CodeUpstream, jagriti.CodeNetwork:
		code = connect.CodeInternal
	default:
		code = connect.CodeUnknown
		if errors.Is(err, context.DeadlineExceeded) {
			code = connect.CodeDeadlineExceeded
		}
	}

	cerr := connect.NewError(code, err)
	if failure, ok := jagriti.AsError(err); ok {
		cerr.Meta().Set("Jagriti-Error-Code", string(failure.Code))
		if failure.Stage != "" {
			cerr.Meta().Set("Jagriti-Error-Stage", string(failure.Stage))
		}
		if failure.IncidentID != "" {
			cerr.Meta().Set("Jagriti-Incident-Id", failure.IncidentID)
		}
		for _, suggestion := range failure.Suggestions {
			cerr.Meta().Add("Jagriti-Suggestion", suggestion)
		}
	}
	return cerr
}
