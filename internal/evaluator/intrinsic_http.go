package evaluator

import (
	"context"
	"io"
	"math/big"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"iris/internal/object"
)

var httpIntrinsics = map[string]intrinsicFn{
	"http.parse_request":  pure(1, parseRequestArg),
	"http.parse_response": pure(1, parseResponseArg),
	"http.get":            arity(1, httpGet),
	"http.post":           arity(2, httpPost),
}

var (
	blankLine  = regexp.MustCompile(`\r?\n\r?\n`)
	lineBreak  = regexp.MustCompile(`\r?\n`)
	statusCode = regexp.MustCompile(`^\s*[+-]?\d+`)
)

func parseRequestArg(args []object.Object) (object.Object, error) {
	text, err := asStr("http.parse_request", args[0])
	if err != nil {
		return nil, err
	}
	return ParseRequest(text), nil
}

func parseResponseArg(args []object.Object) (object.Object, error) {
	text, err := asStr("http.parse_response", args[0])
	if err != nil {
		return nil, err
	}
	return ParseResponse(text), nil
}

// splitMessage separates the head lines from the body at the first blank
// line.
func splitMessage(text string) ([]string, string) {
	parts := blankLine.Split(text, -1)
	body := strings.Join(parts[1:], "\n\n")
	return lineBreak.Split(parts[0], -1), body
}

// parseHeaders splits each line at its first colon; lines without one
// are skipped.
func parseHeaders(lines []string) *object.List {
	var headers []object.Object
	for _, line := range lines {
		key, val, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(line) == "" {
			continue
		}
		headers = append(headers, header(strings.TrimSpace(key), strings.TrimSpace(val)))
	}
	return object.NewList(headers...)
}

func header(key, val string) object.Object {
	return &object.Record{Fields: map[string]object.Object{
		"key": object.NewString(key),
		"val": object.NewString(val),
	}}
}

// ParseRequest parses a raw HTTP request into
// Ok({method, path, headers, body}) or Err(message).
func ParseRequest(text string) object.Object {
	lines, body := splitMessage(text)
	if strings.TrimSpace(lines[0]) == "" {
		return object.ErrString("Empty request")
	}
	reqLine := strings.Split(lines[0], " ")
	if len(reqLine) < 3 {
		return object.ErrString("Invalid request line")
	}
	return object.Ok(&object.Record{Fields: map[string]object.Object{
		"method":  object.NewString(reqLine[0]),
		"path":    object.NewString(reqLine[1]),
		"headers": parseHeaders(lines[1:]),
		"body":    object.NewString(body),
	}})
}

// ParseResponse parses a raw HTTP response into
// Ok({version, status, headers, body}) or Err(message). The status is the
// leading integer of the second token.
func ParseResponse(text string) object.Object {
	lines, body := splitMessage(text)
	if strings.TrimSpace(lines[0]) == "" {
		return object.ErrString("Empty response")
	}
	statusLine := strings.Split(lines[0], " ")
	if len(statusLine) < 2 {
		return object.ErrString("Invalid status line")
	}
	digits := statusCode.FindString(statusLine[1])
	status, ok := new(big.Int).SetString(strings.TrimSpace(digits), 10)
	if !ok {
		return object.ErrString("Invalid status code")
	}
	return object.Ok(response(statusLine[0], status, parseHeaders(lines[1:]), body))
}

func response(version string, status *big.Int, headers *object.List, body string) *object.Record {
	return &object.Record{Fields: map[string]object.Object{
		"version": object.NewString(version),
		"status":  &object.I64{Value: status},
		"headers": headers,
		"body":    object.NewString(body),
	}}
}

func httpGet(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	url, err := asStr("http.get", args[0])
	if err != nil {
		return nil, err
	}
	return in.fetch(t, http.MethodGet, url, "")
}

func httpPost(in *Interpreter, t *task, args []object.Object) (object.Object, error) {
	url, err := asStr("http.post", args[0])
	if err != nil {
		return nil, err
	}
	body, err := asStr("http.post", args[1])
	if err != nil {
		return nil, err
	}
	return in.fetch(t, http.MethodPost, url, body)
}

// fetch performs a request while the process is suspended. Transport
// failures are Err("Fetch failed"); any HTTP status is Ok.
func (in *Interpreter) fetch(t *task, method, url, body string) (object.Object, error) {
	res, callErr, err := await(in, t, method+" "+url, func(ctx context.Context) (*object.Record, error) {
		var reqBody io.Reader
		if method == http.MethodPost {
			reqBody = strings.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return nil, err
		}
		resp, err := in.rt.opts.HTTP.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return response(resp.Proto, big.NewInt(int64(resp.StatusCode)), responseHeaders(resp.Header), string(data)), nil
	})
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		return object.ErrString("Fetch failed"), nil
	}
	return object.Ok(res), nil
}

// responseHeaders lists canonical header names in sorted order, one entry
// per value.
func responseHeaders(h http.Header) *object.List {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []object.Object
	for _, k := range keys {
		for _, v := range h[k] {
			out = append(out, header(k, v))
		}
	}
	return object.NewList(out...)
}
