package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type frame struct {
	Event     string `json:"event"`
	Content   string `json:"content"`
	SessionID string `json:"sessionId"`
	Finished  bool   `json:"finished"`
	Error     string `json:"error"`
}

type summary struct {
	SessionID  string
	Fragments  int
	Text       string
	Finished   bool
	FirstDelta time.Duration
}

func newStreamCmd() *cobra.Command {
	var (
		baseURL string
		persona string
		message string
		token   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Send one message and print the streamed reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("--message is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			body, _ := json.Marshal(map[string]string{"message": message})
			url := strings.TrimRight(baseURL, "/") + "/api/chat/" + persona + "/stream"
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)

			start := time.Now()
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				raw, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("stream refused: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
			}

			out := cmd.OutOrStdout()
			sum, err := readStream(resp.Body, start, func(f frame) {
				if f.Event == "delta" {
					fmt.Fprint(out, f.Content)
				}
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n\nsession=%s fragments=%d chars=%d first_delta=%s finished=%v\n",
				sum.SessionID, sum.Fragments, len(sum.Text), sum.FirstDelta, sum.Finished)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "backend base URL")
	cmd.Flags().StringVar(&persona, "persona", "logical", "persona id or alias")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message to send")
	cmd.Flags().StringVar(&token, "token", "", "access token (see the token command)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")
	return cmd
}

// readStream parses SSE data frames until the body ends.
func readStream(r io.Reader, start time.Time, onFrame func(frame)) (summary, error) {
	var (
		sum  summary
		text strings.Builder
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f frame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			return sum, fmt.Errorf("bad frame %q: %w", line, err)
		}
		if f.SessionID != "" {
			sum.SessionID = f.SessionID
		}
		switch f.Event {
		case "delta":
			if sum.Fragments == 0 {
				sum.FirstDelta = time.Since(start)
			}
			sum.Fragments++
			text.WriteString(f.Content)
		case "end":
			sum.Finished = f.Finished
		}
		onFrame(f)
	}
	sum.Text = text.String()
	return sum, scanner.Err()
}
