// Package cli implements the interactive operator console.
package cli

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/energizer-project/matchgate/internal/certpool"
	"github.com/energizer-project/matchgate/internal/competition"
	"github.com/energizer-project/matchgate/internal/events"
	"github.com/energizer-project/matchgate/internal/protocol"
)

const timeFormat = "2006-01-02 15:04:05"

// CLI reads commands from in and writes results to out.
type CLI struct {
	engine   *competition.Engine
	pool     *certpool.Pool
	eventBus *events.EventBus
	in       io.Reader
	out      io.Writer
}

// NewCLI creates a console over in and out.
func NewCLI(engine *competition.Engine, pool *certpool.Pool, eventBus *events.EventBus, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		engine:   engine,
		pool:     pool,
		eventBus: eventBus,
		in:       in,
		out:      out,
	}
}

// Start runs the read-eval loop until ctx is cancelled, input ends or the
// operator quits.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\nMatchgate console ready. Type 'help' for available commands.")
	fmt.Fprintln(c.out, "─────────────────────────────────────────────────────────")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "matchgate> ")

		var line string
		select {
		case <-ctx.Done():
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if quit := c.execute(ctx, strings.ToLower(parts[0]), parts[1:]); quit {
			return
		}
	}
}

// execute runs one command. It reports whether the console should exit.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) bool {
	var err error
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "sessions", "ls":
		err = c.cmdSessions(ctx, args)
	case "session":
		err = c.cmdSession(ctx, args)
	case "reports":
		err = c.cmdReports(ctx, args)
	case "pool":
		err = c.cmdPool(ctx)
	case "provision":
		err = c.cmdProvision(ctx, args)
	case "reclaim":
		err = c.cmdReclaim(ctx)
	case "release":
		err = c.cmdRelease(ctx, args)
	case "sample":
		c.cmdSample()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down Matchgate...")
		c.eventBus.Emit(ctx, events.Event{
			Type:    events.EventShutdown,
			Source:  "cli",
			Payload: events.ShutdownPayload{Reason: "console quit"},
		})
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}

	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return false
}

func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, "\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(c.out, "║                   Matchgate Console Commands                 ║")
	fmt.Fprintln(c.out, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintln(c.out, "║  sessions [limit]     List recent competition sessions       ║")
	fmt.Fprintln(c.out, "║  session <csid>       Show one session                       ║")
	fmt.Fprintln(c.out, "║  reports <csid> [cc]  Show decoded reports of a session      ║")
	fmt.Fprintln(c.out, "║  pool                 Show certificate pool occupancy        ║")
	fmt.Fprintln(c.out, "║  provision <data...>  Add certificates to the pool           ║")
	fmt.Fprintln(c.out, "║  reclaim              Return expired certificates            ║")
	fmt.Fprintln(c.out, "║  release <id>         Return one certificate to the pool     ║")
	fmt.Fprintln(c.out, "║  sample               Hex dump of an encoded sample report   ║")
	fmt.Fprintln(c.out, "║  quit                 Shutdown Matchgate                     ║")
	fmt.Fprintln(c.out, "║  help                 Show this help message                 ║")
	fmt.Fprintln(c.out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(c.out)
}

func (c *CLI) cmdSessions(ctx context.Context, args []string) error {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid limit: %s", args[0])
		}
		limit = n
	}

	sessions, err := c.engine.ListSessions(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(c.out, "No sessions.")
		return nil
	}

	tw := c.table([]string{"CSID", "CCID", "Profile", "State", "Created", "Updated"})
	for _, s := range sessions {
		tw.Append([]string{
			s.CSID,
			s.CCID,
			strconv.Itoa(s.ProfileID),
			string(s.State),
			s.CreatedAt.Local().Format(timeFormat),
			s.UpdatedAt.Local().Format(timeFormat),
		})
	}
	tw.Render()
	return nil
}

func (c *CLI) cmdSession(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: session <csid>")
	}

	s, err := c.engine.GetSession(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  CSID:     %s\n", s.CSID)
	fmt.Fprintf(c.out, "  CCID:     %s\n", s.CCID)
	fmt.Fprintf(c.out, "  Profile:  %d\n", s.ProfileID)
	fmt.Fprintf(c.out, "  State:    %s\n", s.State)
	fmt.Fprintf(c.out, "  Created:  %s\n", s.CreatedAt.Local().Format(timeFormat))
	fmt.Fprintf(c.out, "  Updated:  %s\n\n", s.UpdatedAt.Local().Format(timeFormat))
	return nil
}

func (c *CLI) cmdReports(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: reports <csid> [ccid]")
	}
	var ccid string
	if len(args) > 1 {
		ccid = args[1]
	}

	reports, err := c.engine.GetReports(ctx, args[0], ccid)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(c.out, "No reports for this session.")
		return nil
	}

	tw := c.table([]string{"Profile", "CCID", "Result", "Type", "Duration", "Players", "Winners", "Bytes", "Decode"})
	for _, r := range reports {
		decode := "ok"
		if r.DecodeError != "" {
			decode = "failed"
		}
		tw.Append([]string{
			strconv.Itoa(r.ProfileID),
			r.CCID,
			r.Result,
			r.GameType,
			(time.Duration(r.Duration) * time.Second).String(),
			strconv.Itoa(len(r.Players)),
			joinIDs(r.WinnerIDs),
			strconv.Itoa(r.RawSize()),
			decode,
		})
	}
	tw.Render()

	for _, r := range reports {
		if r.MapPath != "" {
			fmt.Fprintf(c.out, "  profile %d map: %s\n", r.ProfileID, r.MapPath)
		}
		if r.DecodeError != "" {
			fmt.Fprintf(c.out, "  profile %d decode error: %s\n", r.ProfileID, r.DecodeError)
		}
	}
	return nil
}

func (c *CLI) cmdPool(ctx context.Context) error {
	stats, err := c.pool.Stats(ctx)
	if err != nil {
		return err
	}

	tw := c.table([]string{"Total", "Available", "Allocated", "Expiry"})
	tw.Append([]string{
		strconv.Itoa(stats.Total),
		strconv.Itoa(stats.Available),
		strconv.Itoa(stats.Allocated),
		c.pool.Expiry().String(),
	})
	tw.Render()
	return nil
}

func (c *CLI) cmdProvision(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: provision <certificate> [certificate...]")
	}
	n, err := c.pool.Provision(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added %d certificates\n", n)
	return nil
}

func (c *CLI) cmdReclaim(ctx context.Context) error {
	n, err := c.pool.Reclaim(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Reclaimed %d certificates\n", n)
	return nil
}

func (c *CLI) cmdRelease(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: release <certificate id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid certificate id: %s", args[0])
	}
	if err := c.pool.Release(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Released certificate %d\n", id)
	return nil
}

func (c *CLI) cmdSample() {
	layout := c.engine.Layout()
	data := protocol.Encode(protocol.SampleReport(), layout)
	fmt.Fprintf(c.out, "Sample report, %d bytes, %s strings:\n", len(data), layout.StringEncoding)
	fmt.Fprint(c.out, hex.Dump(data))
}

func (c *CLI) table(header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	return tw
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
