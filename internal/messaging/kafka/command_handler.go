package kafka

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

const commandIdempotencyTTL = 24 * time.Hour

const (
	commandResultOK       = "ok"
	commandResultRejected = "rejected"
	commandResultError    = "error"
)

// OrderCommandHandler обрабатывает команды над заказами из Kafka.
// Каждая команда выполняется под idempotency-key: повторная доставка того же
// сообщения не создаёт второй заказ и не списывает остаток повторно.
type OrderCommandHandler struct {
	orders   *order.Service
	idemRepo domain.IdempotencyRepository
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
}

// NewOrderCommandHandler создаёт обработчик команд над заказами.
func NewOrderCommandHandler(orders *order.Service, idemRepo domain.IdempotencyRepository, m *metrics.OrderMetrics) *OrderCommandHandler {
	return &OrderCommandHandler{
		orders:   orders,
		idemRepo: idemRepo,
		metrics:  m,
		logger:   log.WithField("component", "order-command-handler"),
	}
}

type commandResult struct {
	OrderID string `json:"order_id,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type commandFailurePayload struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Handle реализует MessageHandler для топика команд.
func (h *OrderCommandHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	command, err := ParseOrderCommand(message)
	if err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.RecordCommandStarted()
		defer h.metrics.RecordCommandFinished()
	}

	started := time.Now()
	err = h.handleWithIdempotency(ctx, command, message)
	if h.metrics != nil {
		h.metrics.RecordWorkflowDuration(string(command.CommandType), time.Since(started))
		h.metrics.RecordCommand(string(command.CommandType), commandOutcome(err))
		if errors.Is(err, domain.ErrInsufficientStock) {
			h.metrics.RecordStockRejection()
		}
	}

	if err != nil && isPermanentFailure(err) {
		// Бизнес-отказ не лечится повторной доставкой: сообщение
		// подтверждается, результат уже зафиксирован в idempotency-записи.
		h.logger.WithError(err).WithFields(log.Fields{
			"command_type": command.CommandType,
			"order_id":     command.OrderID,
		}).Warn("order command rejected")
		return nil
	}

	return err
}

func (h *OrderCommandHandler) handleWithIdempotency(ctx context.Context, command *OrderCommand, message *sarama.ConsumerMessage) error {
	key := command.IdempotencyKey
	if key == "" {
		key = headerValue(message, HeaderIdempotencyKey)
	}
	if h.idemRepo == nil || key == "" {
		_, err := h.dispatch(ctx, command)
		return err
	}

	reqHash := hashCommandPayload(message.Value)
	record, err := h.idemRepo.CreateProcessing(key, reqHash, time.Now().UTC().Add(commandIdempotencyTTL))
	if err != nil {
		return h.replayIdempotency(key, record, err)
	}

	body, runErr := h.dispatch(ctx, command)
	if runErr != nil {
		h.cacheFailure(key, runErr)
		return runErr
	}

	if markErr := h.idemRepo.MarkDone(key, body, http.StatusOK); markErr != nil {
		h.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
	}
	return nil
}

// replayIdempotency решает судьбу повторной доставки по сохранённой записи:
// завершённые команды подтверждаются без повторного выполнения, ещё идущие
// откладываются, транзиентные сбои уходят на retry.
func (h *OrderCommandHandler) replayIdempotency(key string, record domain.IdempotencyRecord, createErr error) error {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		h.logger.WithField("idempotency_key", key).Warn("idempotency key reused with different command payload")
		return nil
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone:
			h.logger.WithField("idempotency_key", key).Debug("command already processed, skipping")
			return nil
		case domain.IdempotencyStatusProcessing:
			return fmt.Errorf("command with idempotency key %q is still processing", key)
		case domain.IdempotencyStatusFailed:
			if record.HTTPStatus >= http.StatusInternalServerError {
				return fmt.Errorf("previous attempt for idempotency key %q failed: %s", key, failureMessage(record))
			}
			h.logger.WithFields(log.Fields{
				"idempotency_key": key,
				"status":          record.HTTPStatus,
			}).Warn("command was permanently rejected earlier, skipping")
			return nil
		default:
			return fmt.Errorf("unknown idempotency record status %q", record.Status)
		}
	default:
		return fmt.Errorf("create idempotency record: %w", createErr)
	}
}

func (h *OrderCommandHandler) dispatch(ctx context.Context, command *OrderCommand) ([]byte, error) {
	switch command.CommandType {
	case CommandTypeOrderPlace:
		created, err := h.orders.Create(ctx, order.CreateInput{
			CustomerID: command.CustomerID,
			OrderDate:  command.OrderDate,
			Lines:      toLineInputs(command.Lines),
		})
		if err != nil {
			return nil, err
		}
		return encodeCommandResult(commandResult{OrderID: created.ID})
	case CommandTypeOrderUpdate:
		updated, err := h.orders.Update(ctx, order.UpdateInput{
			OrderID:    command.OrderID,
			CustomerID: command.CustomerID,
			OrderDate:  command.OrderDate,
			Lines:      toLineInputs(command.Lines),
		})
		if err != nil {
			return nil, err
		}
		return encodeCommandResult(commandResult{OrderID: updated.ID})
	case CommandTypeOrderCancel:
		deleted, err := h.orders.Delete(ctx, command.OrderID)
		if err != nil {
			return nil, err
		}
		if !deleted {
			return nil, domain.ErrOrderNotFound
		}
		return encodeCommandResult(commandResult{OrderID: command.OrderID, Deleted: true})
	default:
		return nil, fmt.Errorf("unknown command type: %s", command.CommandType)
	}
}

func (h *OrderCommandHandler) cacheFailure(key string, runErr error) {
	status := failureStatus(runErr)
	payload, err := json.Marshal(commandFailurePayload{
		Status:  status,
		Message: runErr.Error(),
	})
	if err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode command failure payload")
		payload = nil
	}

	if err := h.idemRepo.MarkFailed(key, payload, status); err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store command failure response")
	}
}

func failureStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func failureMessage(record domain.IdempotencyRecord) string {
	if len(record.ResponseBody) > 0 {
		var payload commandFailurePayload
		if err := json.Unmarshal(record.ResponseBody, &payload); err == nil && payload.Message != "" {
			return payload.Message
		}
	}
	return "previous attempt failed"
}

func isPermanentFailure(err error) bool {
	return failureStatus(err) < http.StatusInternalServerError
}

func commandOutcome(err error) string {
	switch {
	case err == nil:
		return commandResultOK
	case isPermanentFailure(err):
		return commandResultRejected
	default:
		return commandResultError
	}
}

func toLineInputs(lines []CommandLine) []order.LineInput {
	inputs := make([]order.LineInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, order.LineInput{
			ProductID:  line.ProductID,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
		})
	}
	return inputs
}

func encodeCommandResult(result commandResult) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode command result: %w", err)
	}
	return data, nil
}

func hashCommandPayload(value []byte) string {
	sum := sha256.Sum256(value)
	return hex.EncodeToString(sum[:])
}

func headerValue(message *sarama.ConsumerMessage, key string) string {
	for _, header := range message.Headers {
		if string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}
