// Package dashboard is the bubbletea root model: it schedules the pollers,
// tracks server health and lays the panels out.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"go.uber.org/zap"
	"radiata.klederson.com/internal/api"
	"radiata.klederson.com/internal/config"
	"radiata.klederson.com/internal/palette"
	"radiata.klederson.com/internal/poll"
	"radiata.klederson.com/internal/ui"
)

// ErrNoSource is returned by New when neither a source nor a dialer is set.
var ErrNoSource = errors.New("dashboard: no metrics source")

const healthKey = "health"

// Panel ids in toggle order; key 1 toggles the first.
const (
	PanelCPU     = "cpu"
	PanelMemory  = "memory"
	PanelGPU     = "gpu"
	PanelProcess = "process"
	PanelNetwork = "network"
	PanelDisk    = "disk"
)

var panelIDs = []string{PanelCPU, PanelMemory, PanelGPU, PanelProcess, PanelNetwork, PanelDisk}

// Options configures the dashboard.
type Options struct {
	ServerURL string
	// Source is used as is when set; otherwise Dial(ServerURL) builds one.
	Source api.Source
	// Dial builds a source for a server URL typed into the header.
	Dial       func(url string) (api.Source, error)
	Demo       bool
	Intervals  config.Durations
	GPUHistory int
	Panels     config.Panels
	Logger     *zap.Logger
}

// shared holds state shared between the bubbletea model copies. Because
// bubbletea uses value receivers, pointer fields ensure all copies see the
// same underlying data.
type shared struct {
	opts      Options
	log       *zap.Logger
	sess      *session
	epoch     uint64
	breaker   *poll.Breaker
	healthGen int
	table     *ui.ProcessTable
	colors    *palette.Palette
	scale     *palette.Scale
	zones     *zone.Manager
	collapsed map[string]bool
	updated   time.Time
	lastErr   error
	now       func() time.Time
}

// Model is the root bubbletea model.
type Model struct {
	width  int
	height int

	serverURL string
	link      ui.Link
	paused    bool
	showHelp  bool
	editing   bool
	filtering bool
	message   string

	urlInput    textinput.Model
	filterInput textinput.Model
	help        help.Model

	shared *shared
}

// New creates a Model. Polling starts with Init.
func New(opts Options) (Model, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Intervals == (config.Durations{}) {
		opts.Intervals = config.DefaultFile().Durations()
	}
	if opts.GPUHistory < 1 {
		opts.GPUHistory = config.GPUHistoryLen
	}
	if opts.ServerURL == "" {
		opts.ServerURL = config.DefaultServerURL
	}

	src := opts.Source
	if src == nil {
		if opts.Dial == nil {
			return Model{}, ErrNoSource
		}
		var err error
		if src, err = opts.Dial(opts.ServerURL); err != nil {
			return Model{}, err
		}
	}

	collapsed := map[string]bool{
		PanelCPU:     !opts.Panels.CPU,
		PanelMemory:  !opts.Panels.Memory,
		PanelGPU:     !opts.Panels.GPU,
		PanelProcess: !opts.Panels.Process,
		PanelNetwork: !opts.Panels.Network,
		PanelDisk:    !opts.Panels.Disk,
	}

	urlInput := textinput.New()
	urlInput.Prompt = "url> "
	urlInput.Placeholder = config.DefaultServerURL
	urlInput.CharLimit = 256
	urlInput.Width = 40

	filterInput := textinput.New()
	filterInput.Prompt = "/"
	filterInput.CharLimit = 64

	s := &shared{
		opts: opts,
		log:  opts.Logger.Named("dashboard"),
		breaker: poll.NewBreaker(poll.BreakerConfig{
			Threshold:  config.BreakerThreshold,
			Backoff:    config.BreakerBackoff,
			MaxBackoff: config.BreakerMaxBackoff,
		}, opts.Logger.Named("breaker")),
		table:     &ui.ProcessTable{},
		colors:    palette.New(palette.DefaultColors, nil),
		scale:     palette.MustScale(config.ScaleFrom, config.ScaleTo, config.ScaleSteps),
		zones:     zone.New(),
		collapsed: collapsed,
		now:       time.Now,
	}
	s.sess = newSession(0, src)

	return Model{
		serverURL:   opts.ServerURL,
		urlInput:    urlInput,
		filterInput: filterInput,
		help:        help.New(),
		shared:      s,
	}, nil
}

func (m Model) Init() tea.Cmd {
	return m.shared.restart(m.shared.sess.source)
}

// restart binds a fresh session to src and schedules every poller.
func (s *shared) restart(src api.Source) tea.Cmd {
	s.epoch++
	s.sess = newSession(s.epoch, src)
	s.breaker.Reset()
	s.updated = time.Time{}
	s.lastErr = nil
	s.table.SetRows(nil)

	return tea.Batch(
		poll.Now(s.healthJob()),
		fetchStatic(src, s.epoch, config.RequestTimeout),
		s.sess.start(s.opts.Intervals, s.table.SetRows),
	)
}

// healthJob builds the health check of the current generation. A manual
// retry bumps the generation so the chain it replaces dies on its next
// result.
func (s *shared) healthJob() poll.Job {
	src := s.sess.source
	return poll.Job{
		Key:      fmt.Sprintf("%s#%d", healthKey, s.healthGen),
		Interval: s.opts.Intervals.Health,
		Timeout:  config.RequestTimeout,
		Epoch:    s.sess.epoch,
		Fetch: func(ctx context.Context) (any, error) {
			return nil, s.breaker.Do(ctx, src.Health)
		},
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case poll.Result:
		return m.handleResult(msg)

	case staticMsg:
		return m.handleStatic(msg)
	}

	return m, nil
}

func (m Model) handleResult(msg poll.Result) (tea.Model, tea.Cmd) {
	s := m.shared
	if msg.Epoch != s.sess.epoch {
		// The chain belongs to a server we switched away from; let it end.
		return m, nil
	}
	if strings.HasPrefix(msg.Key, healthKey+"#") {
		if msg.Key != s.healthJob().Key {
			return m, nil
		}
		return m.handleHealth(msg)
	}

	b, ok := s.sess.jobs[msg.Key]
	if !ok {
		return m, nil
	}
	if !m.paused && m.link != ui.LinkDown {
		b.apply(msg)
		if msg.OK {
			s.updated = msg.At
		} else {
			s.log.Debug("poll failed", zap.String("key", msg.Key), zap.Error(msg.Err))
		}
	}
	return m, poll.Every(b.job)
}

func (m Model) handleHealth(msg poll.Result) (tea.Model, tea.Cmd) {
	s := m.shared
	next := poll.Every(s.healthJob())

	if msg.OK {
		wasDown := m.link == ui.LinkDown
		m.link = ui.LinkLive
		s.lastErr = nil
		if wasDown {
			s.log.Info("server is back", zap.String("server", m.serverURL))
			return m, tea.Batch(next, fetchStatic(s.sess.source, s.sess.epoch, config.RequestTimeout))
		}
		return m, next
	}

	if m.link != ui.LinkDown {
		s.log.Warn("server is down", zap.String("server", m.serverURL), zap.Error(msg.Err))
	}
	m.link = ui.LinkDown
	if !errors.Is(msg.Err, poll.ErrOpen) {
		s.lastErr = msg.Err
	}
	return m, next
}

// retryHealth checks the server right away instead of waiting out the
// breaker backoff.
func (s *shared) retryHealth() tea.Cmd {
	s.healthGen++
	s.breaker.Reset()
	s.log.Debug("health retry", zap.Int("gen", s.healthGen))
	return poll.Now(s.healthJob())
}

func (m Model) handleStatic(msg staticMsg) (tea.Model, tea.Cmd) {
	s := m.shared
	if msg.epoch != s.sess.epoch {
		return m, nil
	}
	if msg.err != nil {
		s.log.Warn("static info incomplete", zap.Error(msg.err))
	}
	s.sess.data.static.merge(msg.info)
	return m, s.sess.startGPUs(s.opts.Intervals, s.opts.GPUHistory)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.shared

	switch {
	case m.editing:
		return m.handleEditKey(msg)
	case m.filtering:
		return m.handleFilterKey(msg)
	case m.showHelp:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Help, keys.Cancel):
			m.showHelp = false
		}
		return m, nil
	}

	m.message = ""
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = true

	case key.Matches(msg, keys.EditURL):
		if s.opts.Demo {
			m.message = "demo mode has no server"
			return m, nil
		}
		m.editing = true
		m.urlInput.SetValue(m.serverURL)
		m.urlInput.CursorEnd()
		return m, m.urlInput.Focus()

	case key.Matches(msg, keys.Pause):
		m.paused = !m.paused

	case key.Matches(msg, keys.Retry):
		return m, s.retryHealth()

	case key.Matches(msg, keys.Sort):
		s.table.SetSort(s.table.Sort.Next())

	case key.Matches(msg, keys.Filter):
		m.filtering = true
		s.table.Filter.Active = true
		m.filterInput.SetValue(s.table.Filter.Query)
		m.filterInput.CursorEnd()
		return m, m.filterInput.Focus()

	case key.Matches(msg, keys.Up):
		s.table.Move(-1)
	case key.Matches(msg, keys.Down):
		s.table.Move(1)
	case key.Matches(msg, keys.Top):
		s.table.Home()
	case key.Matches(msg, keys.Bottom):
		s.table.End()

	case key.Matches(msg, keys.Toggle):
		idx := int(msg.String()[0] - '1')
		m.toggle(panelIDs[idx])
	}

	return m, nil
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.shared
	switch {
	case key.Matches(msg, keys.Cancel):
		m.editing = false
		m.urlInput.Blur()
		return m, nil

	case key.Matches(msg, keys.Confirm):
		url := strings.TrimSpace(m.urlInput.Value())
		if url == m.serverURL {
			m.editing = false
			m.urlInput.Blur()
			return m, nil
		}
		if s.opts.Dial == nil {
			m.message = "server cannot be changed"
			return m, nil
		}
		src, err := s.opts.Dial(url)
		if err != nil {
			m.message = err.Error()
			return m, nil
		}
		s.log.Info("switching server", zap.String("from", m.serverURL), zap.String("to", url))
		m.serverURL = url
		m.editing = false
		m.message = ""
		m.link = ui.LinkConnecting
		m.urlInput.Blur()
		return m, s.restart(src)
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.shared
	switch {
	case key.Matches(msg, keys.Cancel):
		m.filterInput.SetValue("")
		s.table.SetQuery("")
		fallthrough
	case key.Matches(msg, keys.Confirm):
		m.filtering = false
		s.table.Filter.Active = false
		m.filterInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	s.table.SetQuery(m.filterInput.Value())
	return m, cmd
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	s := m.shared
	for _, id := range m.zoneIDs() {
		if s.zones.Get(id).InBounds(msg) {
			m.toggle(panelOf(id))
			break
		}
	}
	return m, nil
}

func (m Model) toggle(panel string) {
	m.shared.collapsed[panel] = !m.shared.collapsed[panel]
}

// zoneIDs lists the clickable title zones currently drawn.
func (m Model) zoneIDs() []string {
	ids := []string{PanelCPU, PanelMemory}
	for i := range m.shared.sess.data.gpus {
		ids = append(ids, gpuZone(i))
	}
	return append(ids, PanelProcess, PanelNetwork, PanelDisk)
}

func gpuZone(i int) string { return fmt.Sprintf("%s-%d", PanelGPU, i) }

// panelOf maps a zone id to the panel it toggles. All GPU boxes share one
// toggle.
func panelOf(id string) string {
	if strings.HasPrefix(id, PanelGPU+"-") {
		return PanelGPU
	}
	return id
}

func (m Model) displayLink() ui.Link {
	if m.paused && m.link != ui.LinkDown {
		return ui.LinkPaused
	}
	return m.link
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing " + config.AppName + "..."
	}
	s := m.shared

	editor := ""
	if m.editing {
		editor = m.urlInput.View()
	}
	header := ui.RenderHeader(m.width, m.serverURL, editor, m.displayLink(), s.opts.Demo)

	visible := 0
	for _, id := range panelIDs {
		if !s.collapsed[id] {
			visible++
		}
	}
	message := m.message
	if m.filtering {
		message = m.filterInput.View()
	}
	status := ui.RenderStatusBar(m.width, ui.Status{
		Link:     m.displayLink(),
		Updated:  s.updated,
		Now:      s.now(),
		Failures: s.breaker.Failures(),
		Visible:  visible,
		Panels:   len(panelIDs),
		Message:  message,
	})

	bodyH := max(1, m.height-2)
	var body string
	switch {
	case m.showHelp:
		body = ui.RenderOverlay(m.width, bodyH, m.help.FullHelpView(keys.FullHelp()))
	case m.link == ui.LinkDown:
		body = ui.RenderServerDown(m.width, bodyH, m.serverURL, m.downDetail())
	default:
		body = m.renderPanels()
	}

	return s.zones.Scan(ui.ComposeLayout(header, body, status, bodyH))
}

func (m Model) downDetail() string {
	s := m.shared
	detail := fmt.Sprintf("health check %s after %d failures", s.breaker.State(), s.breaker.Failures())
	if s.lastErr != nil {
		detail += ": " + s.lastErr.Error()
	}
	return detail
}
