// lookout-tail follows a lookout dashboard and prints session events
//
// Usage: lookout-tail -addr localhost:8181 [-obs] [-status]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-lookout/pkg/session"
)

func main() {
	addr := flag.String("addr", "localhost:8181", "Dashboard host:port")
	showObs := flag.Bool("obs", false, "Also print observations_updated events")
	status := flag.Bool("status", false, "Follow status snapshots instead of events")
	raw := flag.Bool("raw", false, "Print raw JSON")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	flag.Parse()

	if *noColor {
		color.NoColor = true
	}

	path := "/ws/events"
	if *status {
		path = "/ws/status"
	}
	u := url.URL{Scheme: "ws", Host: *addr, Path: path}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p := printer{showObs: *showObs, raw: *raw, status: *status}
	backoff := time.Second
	for {
		err := follow(ctx, u.String(), p)
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(os.Stderr, "⚠️  %v (reconnecting in %s)\n", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func follow(ctx context.Context, wsURL string, p printer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()
	fmt.Fprintf(os.Stderr, "✅ Connected to %s\n", wsURL)

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if line := p.format(data); line != "" {
			fmt.Println(line)
		}
	}
}

type printer struct {
	showObs bool
	raw     bool
	status  bool
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// format renders one message; an empty result means skip it.
func (p printer) format(data []byte) string {
	if p.status {
		if p.raw {
			return string(data)
		}
		var st session.Status
		if err := json.Unmarshal(data, &st); err != nil {
			return red("bad status: " + err.Error())
		}
		return fmt.Sprintf("%s mode=%s detection=%s counter=%d behavior=%s remaining=%d dropped=%d",
			faint(time.Now().Format("15:04:05")), cyan(st.Mode), st.Detection, st.Counter,
			st.Behavior, st.Remaining, st.Dispatcher.Dropped)
	}

	var ev session.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return red("bad event: " + err.Error())
	}
	if ev.Kind == session.EventObservationsUpdated && !p.showObs {
		return ""
	}
	if p.raw {
		return string(data)
	}

	ts := faint(ev.Time.Format("15:04:05.000"))
	kind := string(ev.Kind)
	switch ev.Kind {
	case session.EventTargetAcquired:
		detail := ""
		if ev.Target != nil {
			detail = fmt.Sprintf(" %s (%.0f%%)", ev.Target.Identifier, ev.Target.Confidence*100)
		}
		return fmt.Sprintf("%s %s%s", ts, green(kind), detail)
	case session.EventTargetLost:
		return fmt.Sprintf("%s %s", ts, yellow(kind))
	case session.EventCountdownTick:
		return fmt.Sprintf("%s %s %d", ts, cyan(kind), ev.Remaining)
	case session.EventModeChanged:
		return fmt.Sprintf("%s %s → %s", ts, cyan(kind), ev.Mode)
	case session.EventObservationsUpdated:
		labels := []string{}
		if ev.Overlay != nil {
			labels = ev.Overlay.Labels
		}
		return fmt.Sprintf("%s %s #%d %s", ts, faint(kind), ev.Seq, strings.Join(labels, ", "))
	default:
		return fmt.Sprintf("%s %s %s", ts, red(kind), ev.Error)
	}
}
