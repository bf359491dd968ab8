package http

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/query"
)

// DecodeEnvelope reads the {"results": [...], "error_codes": [...]} convention.
// error_codes entries may be objects with a code/message or bare strings.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("envelope: invalid json")
	}
	results := gjson.GetBytes(body, "results")
	if !results.Exists() {
		return nil, fmt.Errorf("envelope: missing results")
	}

	env := &Envelope{}
	if results.Type != gjson.Null {
		if err := json.Unmarshal([]byte(results.Raw), &env.Results); err != nil {
			return nil, fmt.Errorf("envelope: decode results: %w", err)
		}
	}

	gjson.GetBytes(body, "error_codes").ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			env.ErrorCodes = append(env.ErrorCodes, ErrorCode{
				Code:    v.Get("code").String(),
				Message: v.Get("message").String(),
			})
		} else {
			env.ErrorCodes = append(env.ErrorCodes, ErrorCode{Code: v.String()})
		}
		return true
	})
	return env, nil
}

// PermissionFiltered reports whether the server flagged filtered results.
func (e *Envelope) PermissionFiltered() bool {
	for _, c := range e.ErrorCodes {
		if c.Code == PermissionFilteredCode {
			return true
		}
	}
	return false
}

// GetCollection returns the envelope's results. When the server flagged filtered
// results and raisePermErrors is set, it returns *PermissionError instead.
func (s *Session) GetCollection(ctx context.Context, path string, q query.Options, raisePermErrors bool) ([]Record, error) {
	resp, err := s.Get(ctx, path, WithQuery(q))
	if err != nil {
		return nil, err
	}
	env, err := DecodeEnvelope(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if env.PermissionFiltered() {
		if raisePermErrors {
			return nil, &PermissionError{Path: path, Codes: env.ErrorCodes}
		}
		s.log.Warn("results filtered by permissions",
			logger.String("path", path),
			logger.String("request_id", resp.RequestID),
		)
	}
	return env.Results, nil
}

// GetCollectionSingle requires exactly one result.
func (s *Session) GetCollectionSingle(ctx context.Context, path string, q query.Options) (Record, error) {
	res, err := s.GetCollection(ctx, path, q, false)
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, &LookupError{Path: path, Count: len(res)}
	}
	return res[0], nil
}

// GetJSON decodes the response body into dest.
func (s *Session) GetJSON(ctx context.Context, path string, q query.Options, dest interface{}) error {
	resp, err := s.Get(ctx, path, WithQuery(q))
	if err != nil {
		return err
	}
	return resp.JSON(dest)
}

// GetData returns the response body as text with surrounding whitespace trimmed.
func (s *Session) GetData(ctx context.Context, path string, q query.Options) (string, error) {
	resp, err := s.Get(ctx, path, WithQuery(q))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}
