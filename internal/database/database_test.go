package database

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
)

func newHookLogger() (*queryLoggingHook, *bytes.Buffer) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &queryLoggingHook{log: log}, &buf
}

func TestQueryLoggingHook(t *testing.T) {
	tests := []struct {
		name    string
		event   *bun.QueryEvent
		wantMsg string
	}{
		{
			name:    "error",
			event:   &bun.QueryEvent{Query: "UPDATE kb.workspace_schemas", StartTime: time.Now(), Err: errors.New("deadlock")},
			wantMsg: "query error",
		},
		{
			name:    "no rows is not an error",
			event:   &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now(), Err: sql.ErrNoRows},
			wantMsg: "msg=query ",
		},
		{
			name:    "slow",
			event:   &bun.QueryEvent{Query: "SELECT pg_sleep(1)", StartTime: time.Now().Add(-2 * slowQueryThreshold)},
			wantMsg: "slow query",
		},
		{
			name:    "debug",
			event:   &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()},
			wantMsg: "msg=query ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook, buf := newHookLogger()
			ctx := hook.BeforeQuery(context.Background(), tt.event)
			hook.AfterQuery(ctx, tt.event)
			assert.Contains(t, buf.String(), tt.wantMsg)
		})
	}
}
