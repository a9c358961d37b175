package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "tumor-scan/internal/application"
	"tumor-scan/internal/container"
	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/domain/port"
	"tumor-scan/internal/segmentation"
)

const (
	msgStart = `👋 Привет! Я бот для поиска опухолей на снимках МРТ головного мозга.

🧠 Отправьте мне снимок, и я выделю подозрительные области.

📋 Команды:
/check — начать проверку снимка
/history — сохранённые снимки
/clear — удалить сохранённые снимки
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте снимок МРТ фото или файлом (JPEG, PNG, TIFF, BMP, WebP)
2️⃣ Бот прогонит его через модель сегментации
3️⃣ Вы получите снимок рядом с маской и оценки модели

💡 Файлом снимок приходит без сжатия, так точнее.

📋 Команды:
/check — начать проверку
/history — сохранённые снимки
/clear — удалить сохранённые снимки
/cancel — отменить операцию`

	msgAwaitingScan     = "🧠 Отправьте снимок МРТ для проверки."
	msgCancelled        = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendScan         = "🧠 Пожалуйста, отправьте снимок МРТ фото или файлом изображения."
	msgUseCheck         = "📋 Отправьте /check, чтобы начать проверку, или сразу пришлите снимок."
	msgUnknownCommand   = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing       = "⏳ Анализирую снимок..."
	msgBusy             = "⏳ Предыдущий снимок ещё обрабатывается, подождите."
	msgNotImage         = "📎 Этот файл не похож на изображение. Отправьте снимок JPEG, PNG, TIFF, BMP или WebP."
	msgProcessingError  = "⚠️ Не удалось обработать снимок. Попробуйте ещё раз позже."
	msgMalformedImage   = "⚠️ Не удалось прочитать изображение. Проверьте файл и отправьте снова."
	msgModelUnavailable = "🛠 Модель сегментации сейчас недоступна. Попробуйте позже."
	msgStorageDisabled  = "🗄 Хранение снимков не настроено."
	msgTooLarge         = "⚠️ Снимок слишком большой. Максимум 16 МБ."
	msgHistoryEmpty     = "🗂 Сохранённых снимков нет."

	msgDisclaimer = "⚠️ Оценки эвристические и не являются клиническими метриками. Заключение делает врач."
)

// Bot представляет Telegram-бота
type Bot struct {
	api      *tgbotapi.BotAPI
	users    *app.UserService
	analysis *app.AnalysisService
	client   *http.Client
	log      logrus.FieldLogger

	wg sync.WaitGroup // снимки в обработке
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, log logrus.FieldLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.WithField("account", api.Self.UserName).Info("telegram bot authorized")

	return &Bot{
		api:      api,
		users:    c.UserService,
		analysis: c.AnalysisService,
		client:   http.DefaultClient,
		log:      log,
	}, nil
}

// Run обрабатывает обновления до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.WithError(err).Error("failed to get user")
		return
	}

	if msg.IsCommand() {
		if blockedWhileProcessing(user.State, msg.Command()) {
			b.sendMessage(msg.Chat.ID, msgBusy)
			return
		}
		b.handleCommand(ctx, msg)
		return
	}

	fileID, ok := scanFileID(msg)
	if !ok {
		if msg.Document != nil {
			b.sendMessage(msg.Chat.ID, msgNotImage)
			return
		}
		b.sendMessage(msg.Chat.ID, textReply(user.State))
		return
	}

	// Переход в processing делается до запуска обработки, поэтому второй
	// снимок того же пользователя получит msgBusy.
	started, err := b.users.BeginProcessing(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.WithError(err).Error("failed to update user state")
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}
	if !started {
		b.sendMessage(msg.Chat.ID, msgBusy)
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handleScan(ctx, msg, fileID)
	}()
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.setState(ctx, msg, entity.StateMainMenu)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		if _, err := b.users.BeginCheck(ctx, msg.From.ID, chatID); err != nil {
			b.log.WithError(err).Warn("failed to update user state")
		}
		b.sendMessage(chatID, msgAwaitingScan)

	case "cancel":
		if _, err := b.users.Cancel(ctx, msg.From.ID, chatID); err != nil {
			b.log.WithError(err).Warn("failed to update user state")
		}
		b.sendMessage(chatID, msgCancelled)

	case "history":
		scans, err := b.analysis.ListScans(ctx, ownerID(msg.From.ID))
		if err != nil {
			b.sendMessage(chatID, errorMessage(err))
			return
		}
		b.sendMessage(chatID, formatHistory(scans))

	case "clear":
		n, err := b.analysis.ClearScans(ctx, ownerID(msg.From.ID))
		if err != nil {
			b.sendMessage(chatID, errorMessage(err))
			return
		}
		b.sendMessage(chatID, fmt.Sprintf("🗑 Удалено снимков: %d", n))

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

func (b *Bot) handleScan(ctx context.Context, msg *tgbotapi.Message, fileID string) {
	chatID := msg.Chat.ID
	log := b.log.WithFields(logrus.Fields{"user_id": msg.From.ID, "chat_id": chatID})

	defer b.setState(context.WithoutCancel(ctx), msg, entity.StateMainMenu)

	b.sendMessage(chatID, msgProcessing)

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		log.WithError(err).Error("failed to download scan")
		b.sendMessage(chatID, errorMessage(err))
		return
	}

	out, err := b.analysis.Analyze(ctx, ownerID(msg.From.ID), data)
	if err != nil {
		log.WithError(err).Warn("scan analysis failed")
		b.sendMessage(chatID, errorMessage(err))
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "result.png", Bytes: out.ResultPNG})
	photo.Caption = formatCaption(out.Result)
	if _, err := b.api.Send(photo); err != nil {
		log.WithError(err).Error("failed to send result")
	}
}

// setState меняет состояние диалога; ошибка только логируется
func (b *Bot) setState(ctx context.Context, msg *tgbotapi.Message, state entity.UserState) {
	if _, err := b.users.SetState(ctx, msg.From.ID, msg.Chat.ID, state); err != nil {
		b.log.WithError(err).WithField("state", state).Warn("failed to update user state")
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %s", resp.Status)
	}
	return readScan(resp.Body)
}

// readScan читает не больше MaxScanBytes; более длинный файл не обрезается,
// а отклоняется с ErrScanTooLarge.
func readScan(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, entity.MaxScanBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > entity.MaxScanBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", port.ErrScanTooLarge, entity.MaxScanBytes)
	}
	return data, nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).Error("failed to send message")
	}
}

// scanFileID выбирает фото с максимальным разрешением или документ-изображение
func scanFileID(msg *tgbotapi.Message) (string, bool) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, true
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID, true
	}
	return "", false
}

func ownerID(userID int64) string {
	return fmt.Sprintf("tg:%d", userID)
}

func formatCaption(res *entity.InferenceResult) string {
	var sb strings.Builder
	if res.TumorPresent {
		sb.WriteString("🔴 Обнаружена опухоль\n")
		fmt.Fprintf(&sb, "Площадь: %d пикс., областей: %d\n", res.TumorArea, len(res.Regions))
		for _, r := range res.Regions {
			x, y := r.Center()
			fmt.Fprintf(&sb, "• центр (%d, %d), %d пикс.\n", x, y, r.Area)
		}
	} else {
		sb.WriteString("🟢 Опухоль не обнаружена\n")
	}
	fmt.Fprintf(&sb, "Уверенность: %.1f%%\n", res.Confidence)
	fmt.Fprintf(&sb, "Точность: %.1f%%\n\n", res.Accuracy)
	sb.WriteString(msgDisclaimer)
	return sb.String()
}

// textReply подсказывает следующий шаг в зависимости от состояния диалога
func textReply(state entity.UserState) string {
	switch state {
	case entity.StateAwaitingScan:
		return msgSendScan
	case entity.StateProcessing:
		return msgBusy
	}
	return msgUseCheck
}

// blockedWhileProcessing запрещает менять состояние, пока снимок обрабатывается
func blockedWhileProcessing(state entity.UserState, command string) bool {
	if state != entity.StateProcessing {
		return false
	}
	switch command {
	case "start", "check", "cancel", "clear":
		return true
	}
	return false
}

func formatHistory(scans []*entity.ScanRecord) string {
	if len(scans) == 0 {
		return msgHistoryEmpty
	}

	var sb strings.Builder
	sb.WriteString("🗂 Сохранённые снимки:\n")
	for i, s := range scans {
		fmt.Fprintf(&sb, "%d. %s — %s, %dx%d, %s, %d КБ\n",
			i+1, s.UploadedAt.Format("02.01.2006 15:04"), s.Format, s.Width, s.Height, s.Mode, s.SizeBytes/1024)
	}
	return sb.String()
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, segmentation.ErrMalformedImage):
		return msgMalformedImage
	case errors.Is(err, segmentation.ErrModelUnavailable):
		return msgModelUnavailable
	case errors.Is(err, app.ErrStorageDisabled):
		return msgStorageDisabled
	case errors.Is(err, port.ErrScanTooLarge):
		return msgTooLarge
	}
	return msgProcessingError
}
