package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/younwookim/fightsquares/internal/application/history"
	"github.com/younwookim/fightsquares/internal/application/netsync"
	"github.com/younwookim/fightsquares/internal/domain/fight"
	"github.com/younwookim/fightsquares/internal/infrastructure/store"
)

// storeTimeout bounds each match log write after the match
const storeTimeout = 5 * time.Second

// matchLog writes one match into the SQLite log. The zero value logs nothing.
type matchLog struct {
	st *store.Store
	id string
}

func openMatchLog(ctx context.Context, path string, m store.Match) (*matchLog, error) {
	if path == "" {
		return &matchLog{}, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open match log: %w", err)
	}
	if err := st.StartMatch(ctx, m); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to log match start: %w", err)
	}
	return &matchLog{st: st, id: m.ID}, nil
}

// drainDesyncs stores events until ch is closed
func (l *matchLog) drainDesyncs(ch <-chan netsync.DesyncEvent, logger *slog.Logger) {
	for ev := range ch {
		if l.st == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := l.st.RecordDesync(ctx, l.id, ev.LocalFrame, ev.RemoteFrame); err != nil {
			logger.Warn("failed to log desync", "local_frame", ev.LocalFrame, "remote_frame", ev.RemoteFrame, "error", err)
		}
		cancel()
	}
}

// finish writes every simulated frame and the outcome
func (l *matchLog) finish(res MatchResult, role fight.Player, records []history.FrameRecord, matchErr error) error {
	if l.st == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := l.st.RecordFrames(ctx, l.id, frameRows(role, records)); err != nil {
		return err
	}
	return l.st.FinishMatch(ctx, l.id, res.Frames, res.Final, matchErr)
}

func (l *matchLog) Close() error {
	if l == nil {
		return nil
	}
	return l.st.Close()
}

// frameRows converts the simulated prefix of records into player order
func frameRows(role fight.Player, records []history.FrameRecord) []store.FrameRow {
	var rows []store.FrameRow
	for i := 1; i < len(records) && records[i].Simulated; i++ {
		p1, p2 := role.Order(records[i].Local, records[i].Remote)
		rows = append(rows, store.FrameRow{Frame: i, P1: p1, P2: p2, State: records[i].State})
	}
	return rows
}
