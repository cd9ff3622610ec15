// Package bot wires an inbound chat message to an engine run: rate limit,
// thread classification, subprocess streaming, session registry update and
// the best-effort memory write.
package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Stewart86/bobby/internal/engine"
	"github.com/Stewart86/bobby/internal/memory"
	"github.com/Stewart86/bobby/internal/observability"
	"github.com/Stewart86/bobby/internal/platform"
	"github.com/Stewart86/bobby/internal/ratelimit"
	"github.com/Stewart86/bobby/internal/stream"
	"github.com/Stewart86/bobby/internal/thread"
)

const (
	typingRefreshInterval = 8 * time.Second
	provisionalTitleLen   = 60
	topicLen              = 48

	rateLimitedReply = "You've hit the hourly request limit. Give it a little while and try again."
	apologyReply     = "Sorry, something went wrong while running that analysis. Please try again."
)

// PlatformClient is the slice of the chat platform the orchestrator uses.
type PlatformClient interface {
	SendMessage(ctx context.Context, channelID, content string) error
	CreateThread(ctx context.Context, channelID, messageID, name string) (platform.Channel, error)
	SetChannelName(ctx context.Context, channelID, name string) error
	TriggerTyping(ctx context.Context, channelID string) error
	Channel(ctx context.Context, channelID string) (platform.Channel, error)
	LeaveGuild(ctx context.Context, guildID string) error
}

// EngineProcess is one running engine subprocess.
type EngineProcess interface {
	Stdout() io.Reader
	Wait(ctx context.Context) error
	ErrOutput() string
}

// EngineRunner starts engine subprocesses.
type EngineRunner interface {
	Start(ctx context.Context, inv engine.Invocation) (EngineProcess, error)
}

// WrapRunner adapts the concrete engine runner to the EngineRunner interface.
func WrapRunner(r *engine.Runner) EngineRunner {
	return runnerAdapter{r}
}

type runnerAdapter struct{ r *engine.Runner }

func (a runnerAdapter) Start(ctx context.Context, inv engine.Invocation) (EngineProcess, error) {
	p, err := a.r.Start(ctx, inv)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Deps are the orchestrator's injected collaborators.
type Deps struct {
	Client   PlatformClient
	Runner   EngineRunner
	Limiter  *ratelimit.Limiter
	Memories *memory.Store
	Registry *thread.Registry
	Metrics  *observability.Metrics
	Log      *slog.Logger

	WakeWord        string
	AllowedGuildIDs []string
}

// Orchestrator handles inbound messages. Conversations run concurrently;
// messages within one conversation are serialized so emitted chunks keep
// their decoded order.
type Orchestrator struct {
	client   PlatformClient
	runner   EngineRunner
	limiter  *ratelimit.Limiter
	memories *memory.Store
	registry *thread.Registry
	metrics  *observability.Metrics
	log      *slog.Logger

	wakeWord      string
	allowedGuilds map[string]struct{}

	convLocks sync.Map // conversation id -> *sync.Mutex
	wg        sync.WaitGroup
}

func NewOrchestrator(deps Deps) *Orchestrator {
	allowed := make(map[string]struct{}, len(deps.AllowedGuildIDs))
	for _, id := range deps.AllowedGuildIDs {
		allowed[id] = struct{}{}
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		client:        deps.Client,
		runner:        deps.Runner,
		limiter:       deps.Limiter,
		memories:      deps.Memories,
		registry:      deps.Registry,
		metrics:       deps.Metrics,
		log:           log,
		wakeWord:      deps.WakeWord,
		allowedGuilds: allowed,
	}
}

// HandleMessage routes one inbound message. It returns immediately; the
// query runs on its own goroutine.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg platform.InboundMessage) {
	if msg.Author.Bot {
		return
	}
	if !o.guildAllowed(msg.GuildID) {
		o.log.Warn("message from unauthorized space, leaving", "guild_id", msg.GuildID)
		if err := o.client.LeaveGuild(ctx, msg.GuildID); err != nil {
			o.platformError("leave_guild", err)
		}
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.route(ctx, msg)
	}()
}

// Drain waits for in-flight queries to finish, up to the timeout.
func (o *Orchestrator) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		o.log.Warn("shutdown with queries still in flight")
	}
}

func (o *Orchestrator) route(ctx context.Context, msg platform.InboundMessage) {
	ch, err := o.client.Channel(ctx, msg.ChannelID)
	if err != nil {
		o.platformError("fetch_channel", err)
		return
	}

	switch {
	case ch.IsThread() && thread.IsFollowUp(ch.Name):
		o.handleFollowUp(ctx, msg, ch)
	case !ch.IsThread() && o.hasWakeWord(msg.Content):
		o.handleNewCall(ctx, msg)
	}
}

func (o *Orchestrator) handleFollowUp(ctx context.Context, msg platform.InboundMessage, ch platform.Channel) {
	if !o.admit(ctx, msg.Author.ID, ch.ID) {
		return
	}
	// An unresolvable name (e.g. truncated by a failed rename) means a fresh
	// engine session; the conversation itself continues.
	resume, _ := o.registry.Resolve(ch.ID, ch.Name)
	o.runQuery(ctx, queryRun{
		threadID: ch.ID,
		userID:   msg.Author.ID,
		query:    strings.TrimSpace(msg.Content),
		resume:   resume,
	})
}

func (o *Orchestrator) handleNewCall(ctx context.Context, msg platform.InboundMessage) {
	if !o.admit(ctx, msg.Author.ID, msg.ChannelID) {
		return
	}
	query := o.stripWakeWord(msg.Content)
	if query == "" {
		return
	}

	name := thread.NamePrefix + truncate(query, provisionalTitleLen)
	ch, err := o.client.CreateThread(ctx, msg.ChannelID, msg.ID, name)
	if err != nil {
		o.platformError("create_thread", err)
		if err := o.client.SendMessage(ctx, msg.ChannelID, apologyReply); err != nil {
			o.platformError("send_message", err)
		}
		return
	}

	o.runQuery(ctx, queryRun{
		threadID: ch.ID,
		userID:   msg.Author.ID,
		query:    query,
	})
}

// admit applies the rate limit and informs the user on denial. Limiter
// persistence failures fail open: losing a counter beat dropping a query.
func (o *Orchestrator) admit(ctx context.Context, userID, replyChannelID string) bool {
	allowed, err := o.limiter.TryConsume(ctx, userID)
	if err != nil {
		o.log.Error("rate limiter unavailable, admitting request", "user_id", userID, "error", err)
		return true
	}
	if !allowed {
		o.metrics.RateLimitDenials.Inc()
		o.metrics.QueriesTotal.WithLabelValues("rate_limited").Inc()
		if err := o.client.SendMessage(ctx, replyChannelID, rateLimitedReply); err != nil {
			o.platformError("send_message", err)
		}
		return false
	}
	return true
}

type queryRun struct {
	threadID string
	userID   string
	query    string
	resume   string
}

func (o *Orchestrator) runQuery(ctx context.Context, run queryRun) {
	lock := o.convLock(run.threadID)
	lock.Lock()
	defer lock.Unlock()

	queryID := uuid.NewString()
	log := o.log.With("query_id", queryID, "thread_id", run.threadID, "user_id", run.userID)
	started := time.Now()
	o.metrics.InFlightQueries.Inc()
	defer func() {
		o.metrics.InFlightQueries.Dec()
		o.metrics.ObserveQueryDuration(time.Since(started))
	}()

	typingCtx, stopTyping := context.WithCancel(ctx)
	defer stopTyping()
	go o.typingLoop(typingCtx, run.threadID)

	proc, err := o.runner.Start(ctx, engine.Invocation{
		Query:           run.query,
		ResumeSessionID: run.resume,
	})
	if err != nil {
		log.Error("engine start failed", "error", err)
		o.metrics.QueriesTotal.WithLabelValues("engine_start_failed").Inc()
		if err := o.client.SendMessage(ctx, run.threadID, apologyReply); err != nil {
			o.platformError("send_message", err)
		}
		return
	}

	projector := stream.NewProjector(func(ctx context.Context, text string) error {
		err := o.client.SendMessage(ctx, run.threadID, text)
		if err != nil {
			o.platformError("send_message", err)
		}
		return err
	}, log)

	decoder := engine.NewDecoder(proc.Stdout())
	for {
		ev, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error("engine stream read failed", "error", err)
			break
		}
		o.metrics.StreamEvents.WithLabelValues(string(ev.Type)).Inc()
		projector.Consume(ctx, ev)
	}

	waitErr := proc.Wait(ctx)
	summary := projector.Finalize(ctx, waitErr, proc.ErrOutput())
	stopTyping()

	if !summary.Success {
		// Full stderr goes to the logs only; the user already got a short
		// notice from the projector.
		log.Error("query failed",
			"error", waitErr,
			"stderr", proc.ErrOutput(),
		)
		o.metrics.QueriesTotal.WithLabelValues("engine_failed").Inc()
		return
	}

	o.metrics.QueriesTotal.WithLabelValues("success").Inc()
	log.Info("query completed",
		"session_id", summary.SessionID,
		"issue_filed", summary.IssueFilingDetected,
		"duration", time.Since(started),
	)

	o.recordSession(ctx, run, summary)
	o.remember(run, summary, log)
}

// recordSession binds the learned engine session to the thread and renames
// the thread to carry it. Renames are best-effort with a degraded fallback.
func (o *Orchestrator) recordSession(ctx context.Context, run queryRun, summary stream.Summary) {
	if summary.SessionID == "" {
		return
	}
	o.registry.Bind(run.threadID, summary.SessionID)
	if summary.Title != "" {
		o.registry.SetTitle(run.threadID, summary.Title)
	}

	title := summary.Title
	if rec, ok := o.registry.Lookup(run.threadID); ok && rec.Title != "" {
		title = rec.Title
	}
	if title == "" {
		title = truncate(run.query, provisionalTitleLen)
	}

	name := thread.EncodeName(title, summary.SessionID)
	if err := o.client.SetChannelName(ctx, run.threadID, name); err != nil {
		o.platformError("set_channel_name", err)
		if err := o.client.SetChannelName(ctx, run.threadID, thread.AbbreviatedName(summary.SessionID)); err != nil {
			o.platformError("set_channel_name", err)
			o.log.Warn("thread rename failed, keeping old name", "thread_id", run.threadID)
		}
	}
}

func (o *Orchestrator) remember(run queryRun, summary stream.Summary, log *slog.Logger) {
	if summary.FinalText == "" {
		return
	}
	topic := summary.Title
	if topic == "" {
		topic = truncate(run.query, topicLen)
	}
	if err := o.memories.Append(topic, run.query, summary.FinalText); err != nil {
		log.Error("memory write failed", "topic", topic, "error", err)
	}
}

func (o *Orchestrator) typingLoop(ctx context.Context, channelID string) {
	ticker := time.NewTicker(typingRefreshInterval)
	defer ticker.Stop()
	for {
		if err := o.client.TriggerTyping(ctx, channelID); err != nil && ctx.Err() == nil {
			o.platformError("trigger_typing", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) guildAllowed(guildID string) bool {
	if len(o.allowedGuilds) == 0 {
		return true
	}
	_, ok := o.allowedGuilds[guildID]
	return ok
}

func (o *Orchestrator) hasWakeWord(content string) bool {
	return strings.Contains(strings.ToLower(content), strings.ToLower(o.wakeWord))
}

func (o *Orchestrator) stripWakeWord(content string) string {
	lower := strings.ToLower(content)
	word := strings.ToLower(o.wakeWord)
	idx := strings.Index(lower, word)
	if idx < 0 {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(content[:idx] + content[idx+len(word):])
}

func (o *Orchestrator) convLock(id string) *sync.Mutex {
	v, _ := o.convLocks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (o *Orchestrator) platformError(call string, err error) {
	o.metrics.PlatformErrors.WithLabelValues(call).Inc()
	o.log.Error("platform call failed", "call", call, "error", err)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
