package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/core/ports"
)

const (
	maxMessageRunes   = 4000
	maxConcurrentChat = 8
)

// BotAPI is the part of *tgbotapi.BotAPI the bot uses.
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Metrics interface {
	StartItem()
	FinishItem(kind string, duration time.Duration, err error)
	ObserveLag(lag time.Duration)
}

// Bot maps every chat to its own session ("tg-<chat id>"). Plain text is a question, a
// document attachment goes to the context buffer, commands manage the context.
type Bot struct {
	api            BotAPI
	svc            ports.AssistantService
	httpClient     *http.Client
	uploadMaxBytes int64
	metrics        Metrics
	now            func() time.Time
}

func NewBot(api BotAPI, svc ports.AssistantService, httpClient *http.Client, uploadMaxBytes int64, metrics Metrics) *Bot {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Bot{
		api:            api,
		svc:            svc,
		httpClient:     httpClient,
		uploadMaxBytes: uploadMaxBytes,
		metrics:        metrics,
		now:            time.Now,
	}
}

// Run long-polls for updates until ctx is done. Chats are handled concurrently; messages of
// one chat are serialized by the session service.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	p := pool.New().WithMaxGoroutines(maxConcurrentChat)
	defer p.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			msg := update.Message
			p.Go(func() { b.safeHandle(ctx, msg) })
		}
	}
}

func (b *Bot) safeHandle(ctx context.Context, msg *tgbotapi.Message) {
	var catcher panics.Catcher
	catcher.Try(func() { b.HandleMessage(ctx, msg) })
	if recovered := catcher.Recovered(); recovered != nil {
		slog.Error("telegram_panic",
			"chat_id", msg.Chat.ID,
			"panic", recovered.Value,
			"stack", string(recovered.Stack),
		)
		b.send(msg.Chat.ID, "Erro interno.")
	}
}

// HandleMessage dispatches one incoming message.
func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	start := b.now()
	kind := "message"
	switch {
	case msg.Document != nil:
		kind = "document"
	case msg.IsCommand():
		kind = "command"
	}

	if b.metrics != nil {
		b.metrics.StartItem()
		if msg.Date > 0 {
			b.metrics.ObserveLag(start.Sub(time.Unix(int64(msg.Date), 0)))
		}
	}

	var err error
	switch kind {
	case "document":
		err = b.handleDocument(ctx, msg)
	case "command":
		err = b.handleCommand(ctx, msg)
	default:
		err = b.handleQuestion(ctx, msg)
	}
	if err != nil {
		slog.Warn("telegram_update_failed", "chat_id", msg.Chat.ID, "kind", kind, "error", err)
		b.send(msg.Chat.ID, userMessage(err))
	}

	if b.metrics != nil {
		b.metrics.FinishItem(kind, b.now().Sub(start), err)
	}
}

func (b *Bot) handleQuestion(ctx context.Context, msg *tgbotapi.Message) error {
	reply, err := b.svc.Ask(ctx, SessionID(msg.Chat.ID), msg.Text)
	if err != nil {
		return err
	}
	b.send(msg.Chat.ID, reply.Text)
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	sessionID := SessionID(chatID)
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.send(chatID, helpText)
		return nil
	case "url":
		if args == "" {
			b.send(chatID, "Uso: /url <endereço da página>")
			return nil
		}
		result, err := b.svc.AddPage(ctx, sessionID, args)
		if err != nil {
			return err
		}
		b.send(chatID, describeResult(result))
		return nil
	case "video":
		if args == "" {
			b.send(chatID, "Uso: /video <link do YouTube>")
			return nil
		}
		result, err := b.svc.AddVideo(ctx, sessionID, args)
		if err != nil {
			return err
		}
		b.send(chatID, describeResult(result))
		return nil
	case "notes":
		if _, err := b.svc.SetNotes(ctx, sessionID, args); err != nil {
			return err
		}
		b.send(chatID, "Notas atualizadas.")
		return nil
	case "context":
		session, err := b.svc.Session(ctx, sessionID)
		if err != nil {
			return err
		}
		text := session.Context.String()
		if strings.TrimSpace(text) == "" {
			b.send(chatID, "O contexto está vazio.")
			return nil
		}
		b.send(chatID, text)
		return nil
	case "history":
		session, err := b.svc.Session(ctx, sessionID)
		if err != nil {
			return err
		}
		if len(session.Messages) == 0 {
			b.send(chatID, "Nenhuma mensagem ainda.")
			return nil
		}
		for _, m := range session.Messages {
			b.send(chatID, renderMessage(m))
		}
		return nil
	case "reset":
		if _, err := b.svc.Reset(ctx, sessionID); err != nil {
			return err
		}
		b.send(chatID, "Conversa e contexto apagados.")
		return nil
	default:
		b.send(chatID, "Comando desconhecido. Use /help.")
		return nil
	}
}

func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) error {
	doc := msg.Document
	if b.uploadMaxBytes > 0 && int64(doc.FileSize) > b.uploadMaxBytes {
		b.send(msg.Chat.ID, fmt.Sprintf("Arquivo grande demais (limite de %d bytes).", b.uploadMaxBytes))
		return nil
	}

	fileURL, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "telegram get file", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("build file request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "telegram download file", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrTemporary, "telegram download file", fmt.Errorf("status %s", resp.Status))
	}

	result, err := b.svc.AddDocument(ctx, SessionID(msg.Chat.ID), doc.FileName, doc.MimeType, resp.Body)
	if err != nil {
		return err
	}
	b.send(msg.Chat.ID, describeResult(result))
	return nil
}

func (b *Bot) send(chatID int64, text string) {
	for _, chunk := range splitText(text, maxMessageRunes) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			slog.Warn("telegram_send_failed", "chat_id", chatID, "error", err)
		}
	}
}

// SessionID is the session a Telegram chat talks to.
func SessionID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

const helpText = `Envie uma pergunta e eu respondo usando o contexto desta conversa.
/url <página> adiciona o texto de uma página
/video <link> adiciona a transcrição de um vídeo
/notes <texto> substitui suas notas
/context mostra o contexto atual
/history mostra a conversa
/reset apaga conversa e contexto
Envie um PDF, XLSX ou TXT para adicioná-lo ao contexto.`

func describeResult(result *domain.ExtractionResult) string {
	if result.Failed() {
		return result.Text
	}
	return fmt.Sprintf("Adicionado ao contexto (%s, %d caracteres).", result.Source, len([]rune(result.Text)))
}

func renderMessage(m domain.Message) string {
	if m.Role == domain.RoleUser {
		return "Você: " + m.Text
	}
	return "Assistente: " + m.Text
}

func userMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "Mensagem vazia ou inválida."
	case domain.IsKind(err, domain.ErrTemporary):
		return "Serviço temporariamente indisponível. Tente novamente em instantes."
	case domain.IsKind(err, domain.ErrUpstream), domain.IsKind(err, domain.ErrUnauthorized):
		return "O modelo recusou a requisição: " + err.Error()
	default:
		return "Erro interno."
	}
}

func splitText(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	chunks := make([]string, 0, len(runes)/size+1)
	for len(runes) > 0 {
		n := min(size, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
