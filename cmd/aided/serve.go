package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kittclouds/aide/internal/llm"
	"github.com/kittclouds/aide/internal/orchestrator"
)

var serveUserID string

// clientFrame is one Client->Server message of the streaming turn channel:
// message, direct_edit, direct_edit_batch, interrupt, or set_profile.
type clientFrame struct {
	Type      string      `json:"type"`
	Content   string      `json:"content"`
	MessageID string      `json:"message_id"`
	EntityID  string      `json:"entity_id"`
	Field     string      `json:"field"`
	Value     interface{} `json:"value"`
	Edits     []struct {
		EntityID string      `json:"entity_id"`
		Field    string      `json:"field"`
		Value    interface{} `json:"value"`
	} `json:"edits"`
	Profile string `json:"profile"`
}

var serveCmd = &cobra.Command{
	Use:   "serve <aide-id>",
	Short: "Run an interactive turn loop against one aide over stdin/stdout",
	Long: `serve reads one client message per line from stdin and prints each
resulting frame as one JSON object per line on stdout. A line that is a JSON
object is treated as a structured client frame ({"type":"message",...},
direct_edit, direct_edit_batch, interrupt, set_profile); any other line is
shorthand for {"type":"message","content":<line>}. Ctrl-D ends the session.

This stands in for the HTTP/WebSocket transport, which remains an external
collaborator this binary never implements directly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		aideID := args[0]

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		s := &serveSession{app: a, aideID: aideID, ctx: cmd.Context(), enc: json.NewEncoder(os.Stdout)}

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			frame := clientFrame{Type: "message", Content: line}
			if strings.HasPrefix(line, "{") {
				if err := json.Unmarshal([]byte(line), &frame); err != nil {
					fmt.Fprintln(os.Stderr, "aided: bad client frame:", err)
					continue
				}
			}
			s.handle(frame)
		}
		s.turns.Wait()
		if totals := a.orch.CostTotals(aideID); totals.CallCount > 0 {
			fmt.Fprintf(os.Stderr, "aided: session totals: %d calls, %d in / %d out tokens, $%.4f\n",
				totals.CallCount, totals.InputTokens, totals.OutputTokens, totals.CostUSD)
		}
		return scanner.Err()
	},
}

// serveSession holds the per-session state the stdin loop dispatches into.
// Turn frames drain on a background goroutine so an interrupt line can be
// read while a turn is still streaming.
type serveSession struct {
	app    *app
	aideID string
	ctx    context.Context

	encMu sync.Mutex
	enc   *json.Encoder
	turns sync.WaitGroup
}

func (s *serveSession) print(v interface{}) {
	s.encMu.Lock()
	defer s.encMu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "aided: encode frame:", err)
	}
}

func (s *serveSession) handle(frame clientFrame) {
	switch frame.Type {
	case "message":
		s.startTurn(frame)

	case "direct_edit":
		edits := []orchestrator.DirectEdit{{EntityID: frame.EntityID, Field: frame.Field, Value: frame.Value}}
		s.applyDirectEdits(edits)

	case "direct_edit_batch":
		edits := make([]orchestrator.DirectEdit, 0, len(frame.Edits))
		for _, e := range frame.Edits {
			edits = append(edits, orchestrator.DirectEdit{EntityID: e.EntityID, Field: e.Field, Value: e.Value})
		}
		s.applyDirectEdits(edits)

	case "interrupt":
		if !s.app.orch.Interrupt(s.aideID) {
			fmt.Fprintln(os.Stderr, "aided: no turn in progress to interrupt")
		}

	case "set_profile":
		if s.app.mock == nil {
			fmt.Fprintln(os.Stderr, "aided: set_profile only applies to the mock streamer")
			return
		}
		s.app.mock.SetProfile(llm.DelayProfile(frame.Profile))

	default:
		fmt.Fprintln(os.Stderr, "aided: unrecognized client frame type:", frame.Type)
	}
}

func (s *serveSession) startTurn(frame clientFrame) {
	if !s.app.limiter.Allow(serveUserID) {
		fmt.Fprintln(os.Stderr, "aided: free-tier turn limit reached for", serveUserID)
		return
	}
	messageID := frame.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	frames, err := s.app.orch.ProcessTurn(s.ctx, s.aideID, frame.Content, orchestrator.Options{
		MessageID: messageID,
		UserID:    serveUserID,
		Source:    "cli",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "aided: turn failed:", err)
		return
	}

	s.turns.Add(1)
	go func() {
		defer s.turns.Done()
		for frame := range frames {
			s.print(frame)
		}
	}()
}

func (s *serveSession) applyDirectEdits(edits []orchestrator.DirectEdit) {
	events, snap, err := s.app.orch.ProcessDirectEditBatch(s.ctx, s.aideID, serveUserID, edits)
	if err != nil {
		s.print(orchestrator.Frame{Type: orchestrator.FrameDirectEditError, Error: err.Error()})
		return
	}
	for _, ev := range events {
		s.print(orchestrator.Frame{
			Type:     orchestrator.FrameEntityUpdate,
			ID:       editEntityID(ev.Payload),
			Sequence: ev.Sequence,
			Data:     map[string]interface{}{"props": snap.Entities[editEntityID(ev.Payload)].Props},
		})
	}
}

func editEntityID(payload json.RawMessage) string {
	var p struct {
		Ref string `json:"ref"`
	}
	_ = json.Unmarshal(payload, &p)
	return p.Ref
}

func init() {
	serveCmd.Flags().StringVar(&serveUserID, "user", "local", "user id attributed to turns run in this session")
	rootCmd.AddCommand(serveCmd)
}
