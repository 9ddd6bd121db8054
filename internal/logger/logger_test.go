// SPDX-FileCopyrightText: SoftDAB <hello@softdab.tech>
//
// SPDX-License-Identifier: MIT

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("json format is the default", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := NewLogger(slog.LevelInfo, buf, Opts{})
		log.Info("hello")

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("expected JSON log output, got %q: %s", buf.String(), err)
		}
		if line["msg"] != "hello" {
			t.Errorf("expected msg to be hello, got %v", line["msg"])
		}
	})
	t.Run("text format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := NewLogger(slog.LevelInfo, buf, Opts{Format: "text"})
		log.Info("hello")
		if !strings.Contains(buf.String(), "msg=hello") {
			t.Errorf("expected text log output, got %q", buf.String())
		}
	})
	t.Run("level filters lower records", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := NewLogger(slog.LevelWarn, buf, Opts{})
		log.Info("dropped")
		if buf.Len() != 0 {
			t.Errorf("expected info record to be dropped, got %q", buf.String())
		}
	})
	t.Run("client ip is masked when configured", func(t *testing.T) {
		tests := []struct {
			name string
			ip   string
			want string
		}{
			{"ipv4", "203.0.113.42", "203.0.0.0"},
			{"ipv6", "2001:db8:abcd:12::1", "2001:db8:abcd::"},
			{"garbage", "not-an-ip", "0.0.0.0"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				buf := &bytes.Buffer{}
				log := NewLogger(slog.LevelInfo, buf, Opts{DontLogIP: true})
				log.Info("request", slog.String("client.ip", tt.ip))

				var line map[string]any
				if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
					t.Fatalf("failed to parse log line: %s", err)
				}
				if line["client.ip"] != tt.want {
					t.Errorf("expected masked ip %q, got %v", tt.want, line["client.ip"])
				}
			})
		}
	})
}

func TestErr(t *testing.T) {
	t.Run("err wraps an error as attr", func(t *testing.T) {
		attr := Err(errors.New("boom"))
		if attr.Key != "error" {
			t.Errorf("expected attr key to be error, got %s", attr.Key)
		}
		if !strings.Contains(attr.Value.String(), "boom") {
			t.Errorf("expected attr value to carry the error, got %s", attr.Value.String())
		}
	})
}
