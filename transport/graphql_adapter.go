package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
)

const KindGraphQL = "graphql"

type GraphQLRequest struct {
	Query         string
	OperationName string
	Variables     map[string]any
	Headers       map[string]string
	Timeout       time.Duration
}

type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLAdapter posts GraphQL operations as JSON over the REST adapter.
type GraphQLAdapter struct {
	Endpoint string
	REST     *RESTAdapter
}

func NewGraphQLAdapter(endpoint string, client core.HTTPDoer, opts ...RESTOption) *GraphQLAdapter {
	return &GraphQLAdapter{
		Endpoint: strings.TrimSpace(endpoint),
		REST:     NewRESTAdapter(client, opts...),
	}
}

// Execute runs one operation and decodes data into out when out is non-nil.
// GraphQL-level errors are returned as external failures.
func (a *GraphQLAdapter) Execute(ctx context.Context, req GraphQLRequest, out any) (GraphQLResponse, error) {
	if a == nil || a.REST == nil {
		return GraphQLResponse{}, transportError(
			"transport: graphql adapter requires a rest adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	if a.Endpoint == "" {
		return GraphQLResponse{}, transportError(
			"transport: graphql endpoint is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return GraphQLResponse{}, transportError(
			"transport: graphql query is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL},
		)
	}

	payload := map[string]any{"query": query}
	if name := strings.TrimSpace(req.OperationName); name != "" {
		payload["operationName"] = name
	}
	if req.Variables != nil {
		payload["variables"] = req.Variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return GraphQLResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: marshal graphql payload",
			http.StatusBadRequest,
			map[string]any{"adapter": KindGraphQL, "operation": req.OperationName},
		)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	for key, value := range req.Headers {
		headers[key] = value
	}

	response, err := a.REST.Do(ctx, Request{
		Method:  http.MethodPost,
		URL:     a.Endpoint,
		Headers: headers,
		Body:    body,
		Timeout: req.Timeout,
	})
	if err != nil {
		return GraphQLResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: graphql request failed",
			http.StatusBadGateway,
			map[string]any{"adapter": KindGraphQL, "operation": req.OperationName},
		)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return GraphQLResponse{}, transportError(
			fmt.Sprintf("transport: graphql endpoint returned status %d", response.StatusCode),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{
				"adapter":     KindGraphQL,
				"operation":   req.OperationName,
				"status_code": response.StatusCode,
			},
		)
	}

	var decoded GraphQLResponse
	if err := json.Unmarshal(response.Body, &decoded); err != nil {
		return GraphQLResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode graphql response",
			http.StatusBadGateway,
			map[string]any{"adapter": KindGraphQL, "operation": req.OperationName},
		)
	}
	if len(decoded.Errors) > 0 {
		return decoded, transportError(
			"transport: graphql error: "+joinGraphQLErrors(decoded.Errors),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{
				"adapter":   KindGraphQL,
				"operation": req.OperationName,
				"codes":     graphQLErrorCodes(decoded.Errors),
			},
		)
	}
	if out != nil && len(decoded.Data) > 0 {
		if err := json.Unmarshal(decoded.Data, out); err != nil {
			return decoded, transportWrapError(
				err,
				goerrors.CategoryExternal,
				"transport: decode graphql data",
				http.StatusBadGateway,
				map[string]any{"adapter": KindGraphQL, "operation": req.OperationName},
			)
		}
	}
	return decoded, nil
}

func joinGraphQLErrors(errs []GraphQLError) string {
	messages := make([]string, 0, len(errs))
	for _, item := range errs {
		if message := strings.TrimSpace(item.Message); message != "" {
			messages = append(messages, message)
		}
	}
	if len(messages) == 0 {
		return "unknown error"
	}
	return strings.Join(messages, "; ")
}

// graphQLErrorCodes collects extensions.code, which Hasura uses for
// constraint-violation, validation-failed and similar classes.
func graphQLErrorCodes(errs []GraphQLError) []string {
	codes := make([]string, 0, len(errs))
	for _, item := range errs {
		if code, ok := item.Extensions["code"].(string); ok && code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}
