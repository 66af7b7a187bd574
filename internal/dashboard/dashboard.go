// Package dashboard renders a live terminal UI for a running swarm.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/queez/quizbots/internal/bot"
	"github.com/queez/quizbots/internal/metrics"
	"github.com/queez/quizbots/internal/swarm"
)

// RunInfo holds run parameters for display.
type RunInfo struct {
	TargetURL   string
	SessionCode string
	Bots        int
	ConfigFile  string
}

// Dashboard renders a live terminal UI over the collector and the pool.
type Dashboard struct {
	collector    *metrics.Collector
	stateFn      func() swarm.State
	sessionsFn   func() []*bot.Session
	shutdownFunc func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	// Widgets
	grid            *ui.Grid
	summaryPara     *widgets.Paragraph
	healthGauge     *widgets.Gauge
	latencySparkle  *widgets.SparklineGroup
	latencyPara     *widgets.Paragraph
	leaderboardList *widgets.List
	errorList       *widgets.List
	latencyHistory  []float64
	startTime       time.Time
	runDuration     time.Duration
	info            RunInfo
}

// New creates a new Dashboard. stateFn and sessionsFn are polled on
// every refresh; shutdownFunc is invoked when the user quits with q or
// Ctrl-C.
func New(collector *metrics.Collector, info RunInfo, stateFn func() swarm.State, sessionsFn func() []*bot.Session, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:      collector,
		stateFn:        stateFn,
		sessionsFn:     sessionsFn,
		shutdownFunc:   shutdownFunc,
		ctx:            ctx,
		cancel:         cancel,
		latencyHistory: make([]float64, 0, 100),
		startTime:      time.Now(),
		info:           info,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.healthGauge = widgets.NewGauge()
	d.healthGauge.Title = "Swarm Health"
	d.healthGauge.Percent = 0
	d.healthGauge.BarColor = ui.ColorBlue
	d.healthGauge.BorderStyle.Fg = ui.ColorCyan
	d.healthGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	sparkline := widgets.NewSparkline()
	sparkline.Title = "Answer latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Answer Round-trip"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.leaderboardList = widgets.NewList()
	d.leaderboardList.Title = "Leaderboard"
	d.leaderboardList.Rows = []string{"Awaiting data"}
	d.leaderboardList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.leaderboardList.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Failures"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.18,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.healthGauge),
		),
		ui.NewRow(0.28,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.38,
			ui.NewCol(0.5, d.leaderboardList),
			ui.NewCol(0.5, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and cleans up.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	d.runDuration = time.Since(d.startTime)
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// FinalStats returns the final statistics after the dashboard has stopped.
func (d *Dashboard) FinalStats() metrics.Stats {
	return d.collector.Stats(d.runDuration)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the collector and the pool.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats := d.collector.Stats(elapsed)

	if stats.AnswerMean > 0 {
		d.latencyHistory = append(d.latencyHistory, stats.AnswerMeanMs)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Answer Round-trip | Mean: %.2fms | P99: %.2fms",
			stats.AnswerMeanMs,
			stats.AnswerP99Ms,
		)
	}

	alive := stats.Connects - stats.Disconnects
	d.healthGauge.Percent = healthPercent(alive, int64(d.info.Bots))
	d.healthGauge.Label = fmt.Sprintf("%d/%d bots connected", alive, d.info.Bots)

	accuracy := 0.0
	if stats.Answers > 0 {
		accuracy = float64(stats.Correct) / float64(stats.Answers) * 100
	}

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s | Session: %s%s\nState: %s | Elapsed: %s\nAnswers: %d | Correct: %.1f%% | Lost: %d | Failed dials: %d",
		d.info.TargetURL,
		d.info.SessionCode,
		configSuffix(d.info.ConfigFile),
		d.stateFn(),
		elapsed.Round(time.Second),
		stats.Answers,
		accuracy,
		stats.Disconnects,
		stats.ConnectFailures,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP99:  %.2fms",
		float64(stats.AnswerMin.Microseconds())/1000,
		stats.AnswerMeanMs,
		stats.AnswerP50Ms,
		stats.AnswerP90Ms,
		stats.AnswerP99Ms,
	)

	d.leaderboardList.Rows = leaderboardRows(d.sessionsFn(), 15)
	d.errorList.Rows = formatErrorRows(stats.Errors)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func healthPercent(alive, total int64) int {
	if total <= 0 {
		return 0
	}
	if alive < 0 {
		alive = 0
	}
	pct := int(alive * 100 / total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

func configSuffix(path string) string {
	if path == "" {
		return ""
	}
	return " | Config: " + path
}

// leaderboardRows renders the pool sorted by score, highest first.
func leaderboardRows(sessions []*bot.Session, limit int) []string {
	if len(sessions) == 0 {
		return []string{"[No bots](fg:green)"}
	}
	sorted := append([]*bot.Session(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score() == sorted[j].Score() {
			return sorted[i].Username() < sorted[j].Username()
		}
		return sorted[i].Score() > sorted[j].Score()
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	rows := make([]string, 0, len(sorted))
	for i, s := range sorted {
		color := "cyan"
		if s.Status() == bot.StatusDisconnected || s.Status() == bot.StatusErrored {
			color = "red"
		}
		rows = append(rows, fmt.Sprintf("[%2d. %-16s](fg:%s) %5d pts | %d answered",
			i+1, s.Username(), color, s.Score(), s.Answered()))
	}
	return rows
}

func formatErrorRows(errors map[string]int64) []string {
	if len(errors) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	types := make([]string, 0, len(errors))
	for t := range errors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if errors[types[i]] == errors[types[j]] {
			return types[i] < types[j]
		}
		return errors[types[i]] > errors[types[j]]
	})
	if len(types) > 10 {
		types = types[:10]
	}
	rows := make([]string, 0, len(types))
	for _, t := range types {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) x%d", strings.TrimPrefix(t, "*"), errors[t]))
	}
	return rows
}
