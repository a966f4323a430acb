package update

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/sandeepkv93/taskfuse/internal/commands"
	"github.com/sandeepkv93/taskfuse/internal/fuse"
	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/notify"
	"github.com/sandeepkv93/taskfuse/internal/refresh"
)

type Refresher interface {
	Refresh(ctx context.Context, now time.Time) (refresh.Snapshot, error)
	Cached(ctx context.Context) (refresh.Snapshot, error)
}

type Completer interface {
	SetCompleted(ctx context.Context, id int64, completed bool) (model.Task, error)
}

// Editor writes task changes back to the backend.
type Editor interface {
	CreateTask(ctx context.Context, draft model.TaskDraft) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Seen is the notification suppressor as seen by the dashboard.
type Seen interface {
	Clear(ctx context.Context)
	Sweep() int
}

type Deps struct {
	Refresher Refresher
	// Completer is nil when the backend cannot be written to.
	Completer Completer
	// Editor is nil when tasks cannot be created, edited or deleted.
	Editor Editor
	Seen   Seen
	// Alerts carries events admitted by the notification center.
	Alerts <-chan notify.Event
	User   string
	Now    func() time.Time
}

type Options struct {
	RefreshInterval time.Duration
	TickInterval    time.Duration
	ClearInterval   time.Duration
}

func (o Options) withDefaults() Options {
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = 30 * time.Second
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.ClearInterval <= 0 {
		o.ClearInterval = time.Hour
	}
	return o
}

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Refresh key.Binding
	Toggle  key.Binding
	NewTask key.Binding
	Delete  key.Binding
	Clear   key.Binding
	Palette key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func DefaultKeyMap() GlobalKeyMap {
	return GlobalKeyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "move up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "move down")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh now")),
		Toggle:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "toggle done")),
		NewTask: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		Clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear seen alerts")),
		Palette: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "command palette")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type Model struct {
	Tasks       []model.Task
	Cursor      int
	SelectedID  int64
	Filter      commands.FilterMode
	SortField   commands.SortField
	SortDesc    bool
	FetchedAt   time.Time
	Stale       bool
	Fetching    bool
	Banner      *notify.Event
	Recent      []notify.Event
	Palette     CommandPaletteState
	// ConfirmDelete holds the task awaiting a "y" before it is deleted.
	ConfirmDelete *model.Task
	HelpVisible   bool
	Status      StatusBar
	Keys        GlobalKeyMap
	Quitting    bool
	LastError   error

	deps   Deps
	opts   Options
	width  int
	height int

	tierBars     map[fuse.Tier]progress.Model
	commandInput textinput.Model
	fetchSpinner spinner.Model
	helpModel    help.Model
	detail       viewport.Model
	detailKey    string
}

type RefreshDueMsg struct{}

type SnapshotMsg struct {
	Snapshot refresh.Snapshot
	Err      error
	// Scheduled marks results of the timer loop, which re-arms itself.
	Scheduled bool
}

type CachedMsg struct {
	Snapshot refresh.Snapshot
}

type TickMsg time.Time

type ClearDueMsg struct{}

type AlertMsg struct {
	Event notify.Event
}

type HideBannerMsg struct {
	ID string
}

type ToggledMsg struct {
	Task model.Task
	Err  error
}

// SavedMsg reports a create or edit round trip.
type SavedMsg struct {
	Task    model.Task
	Created bool
	Err     error
}

type DeletedMsg struct {
	ID    int64
	Title string
	Err   error
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

const maxRecentAlerts = 20

func NewModel(deps Deps, opts Options) Model {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	m := Model{
		Filter:    commands.FilterAll,
		SortField: commands.SortDue,
		Keys:      DefaultKeyMap(),
		deps:      deps,
		opts:      opts.withDefaults(),
		Fetching:  deps.Refresher != nil,
		width:     120,
		height:    40,
	}
	m.initBubbleComponents()
	return m
}

func (m *Model) initBubbleComponents() {
	m.tierBars = map[fuse.Tier]progress.Model{
		fuse.TierUrgent: progress.New(progress.WithSolidFill("#ff0000"), progress.WithoutPercentage()),
		fuse.TierMedium: progress.New(progress.WithGradient("#ff0000", "#ff5e00"), progress.WithoutPercentage()),
		fuse.TierSafe:   progress.New(progress.WithGradient("#ff5e00", "#ffcc00"), progress.WithoutPercentage()),
	}

	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 128
	m.commandInput.Width = 48

	m.fetchSpinner = spinner.New()
	m.fetchSpinner.Spinner = spinner.Dot

	m.helpModel = help.New()
	m.detail = viewport.New(40, 12)
	m.resize(m.width, m.height)
}

func (m Model) now() time.Time {
	return m.deps.Now()
}
