package challenge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Judge runs the hidden tests of a challenge against submitted code.
type Judge interface {
	Run(ctx context.Context, id, code string) (*Result, error)
}

type Result struct {
	Passed   bool      `json:"passed"`
	Total    int       `json:"total"`
	Failures []Failure `json:"failures,omitempty"`
	Stdout   string    `json:"stdout,omitempty"`
	Stderr   string    `json:"stderr,omitempty"`
}

type Failure struct {
	Name   string `json:"name"`
	Output string `json:"output"`
}

// HTTPJudge calls an external judge service: POST <url>/run with {id, code}.
type HTTPJudge struct {
	url    string
	client *http.Client
}

func NewHTTPJudge(url string, timeout time.Duration) *HTTPJudge {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPJudge{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (j *HTTPJudge) Run(ctx context.Context, id, code string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"id": id, "code": code})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("judge: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("judge: run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("judge: run: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("judge: decode result: %w", err)
	}
	return &res, nil
}
