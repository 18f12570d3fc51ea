package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"image-normalizer/internal/broker"
	kafka_impl "image-normalizer/internal/broker/kafka"
	"image-normalizer/internal/config"
	"image-normalizer/internal/domain"
	minio_repo "image-normalizer/internal/repository/image/cloud/minio"
	postgres_repo "image-normalizer/internal/repository/image/db/postgres"
	"image-normalizer/internal/usecase/normalizer"
	"image-normalizer/internal/usecase/processor"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type Worker struct {
	logger      *zlog.Zerolog
	consumer    messageConsumer
	producer    resultProducer
	processor   taskProcessor
	imageRepo   imageRepository
	fileRepo    fileRepository
	retries     retry.Strategy
	concurrency int
	closers     []func() error
	wg          sync.WaitGroup
}

func NewWorker(cfg *config.Config, logger *zlog.Zerolog) (*Worker, error) {
	retries := cfg.DefaultRetryStrategy()

	dbOpts := &dbpg.Options{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}
	db, err := dbpg.New(cfg.DBDSN(), []string{}, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	fileRepo, err := minio_repo.NewMinIORepository(cfg, retries, logger)
	if err != nil {
		db.Master.Close()
		return nil, fmt.Errorf("failed to create file repository: %w", err)
	}

	imageRepo := postgres_repo.NewImagesRepository(db, retries)
	client := kafka_impl.NewKafkaClient(cfg)

	norm := normalizer.NewNormalizer(nil, cfg.NormalizeOptions(), logger)
	imageProcessor := processor.NewImageProcessor(norm, fileRepo, logger)

	logger.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.ProcessingTopic).
		Str("results_topic", cfg.Kafka.ResultsTopic).
		Str("group", cfg.Kafka.GroupID).
		Int("concurrency", cfg.Worker.Concurrency).
		Msg("Worker configuration")

	w := New(client, client, imageProcessor, imageRepo, fileRepo, retries, cfg.Worker.Concurrency, logger)
	w.closers = []func() error{client.Close, db.Master.Close}
	return w, nil
}

// New assembles a worker from already constructed dependencies.
func New(
	consumer messageConsumer,
	producer resultProducer,
	processor taskProcessor,
	imageRepo imageRepository,
	fileRepo fileRepository,
	retries retry.Strategy,
	concurrency int,
	logger *zlog.Zerolog,
) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		logger:      logger,
		consumer:    consumer,
		producer:    producer,
		processor:   processor,
		imageRepo:   imageRepo,
		fileRepo:    fileRepo,
		retries:     retries,
		concurrency: concurrency,
	}
}

// Run consumes tasks until SIGINT or SIGTERM.
func (w *Worker) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := w.Start(ctx)

	for _, closeFn := range w.closers {
		if closeErr := closeFn(); closeErr != nil {
			w.logger.Error().Err(closeErr).Msg("Failed to release worker resource")
		}
	}

	w.logger.Info().Msg("Worker stopped gracefully")
	return err
}

// Start runs the worker pool and blocks until ctx is done and every in-flight message is finished.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.concurrency).Msg("Starting worker")

	messages := make(chan *broker.Message, w.concurrency*2)
	w.consumer.Start(ctx, messages, w.retries)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			w.processWorker(ctx, id, messages)
		}(i)
	}

	w.logger.Info().Msg("Worker started successfully")
	<-ctx.Done()

	w.logger.Info().Msg("Shutting down worker gracefully...")
	w.wg.Wait()
	return nil
}

func (w *Worker) processWorker(ctx context.Context, id int, messages <-chan *broker.Message) {
	w.logger.Debug().Int("worker_id", id).Msg("Worker goroutine started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug().Int("worker_id", id).Msg("Worker goroutine stopping")
			return
		case msg := <-messages:
			w.handle(ctx, id, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, id int, msg *broker.Message) {
	startTime := time.Now()
	w.logger.Debug().Int("worker_id", id).Int("message_size", len(msg.Value)).Msg("Processing message")

	if err := w.safeProcessMessage(ctx, id, msg); err != nil {
		w.logger.Error().
			Err(err).
			Int("worker_id", id).
			Int64("offset", msg.Offset).
			Msg("Failed to process message, leaving it uncommitted")
		return
	}

	if err := w.consumer.Commit(ctx, msg); err != nil {
		w.logger.Error().
			Err(err).
			Int64("offset", msg.Offset).
			Int("worker_id", id).
			Msg("Failed to commit message after processing")
		return
	}

	w.logger.Debug().
		Int("worker_id", id).
		Int64("offset", msg.Offset).
		Dur("duration", time.Since(startTime)).
		Msg("Message processed and committed")
}

func (w *Worker) safeProcessMessage(ctx context.Context, workerID int, msg *broker.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Int("worker_id", workerID).
				Interface("panic", r).
				Int64("offset", msg.Offset).
				Msg("Panic recovered while processing message")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processMessage(ctx, msg)
}

// processMessage handles one task. Failures of the task itself are reported through a failed
// result and the message counts as handled; an error is returned only when the outcome could not
// be published, so the task is redelivered.
func (w *Worker) processMessage(ctx context.Context, msg *broker.Message) error {
	var task domain.ProcessingTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		w.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to unmarshal task, skipping")
		return nil
	}

	w.logger.Info().
		Str("task_id", task.ID).
		Str("image_id", task.ImageID).
		Int64("offset", msg.Offset).
		Msg("Processing task started")

	result, err := w.process(ctx, &task)
	if err != nil {
		w.logger.Error().Err(err).Str("image_id", task.ImageID).Msg("Image normalization failed")
		w.updateStatus(ctx, task.ImageID, domain.StatusFailed)
		return w.publish(ctx, result)
	}

	if err := w.imageRepo.SaveProcessedImage(ctx, processor.ProcessedImageFromResult(result)); err != nil {
		w.logger.Error().Err(err).Str("image_id", task.ImageID).Msg("Failed to save processed image metadata")
		result.Status = domain.StatusFailed
		result.Error = fmt.Sprintf("Failed to save processed image metadata: %v", err)
		w.updateStatus(ctx, task.ImageID, domain.StatusFailed)
		return w.publish(ctx, result)
	}

	w.updateStatus(ctx, task.ImageID, domain.StatusCompleted)
	w.logger.Info().
		Str("image_id", task.ImageID).
		Str("path", result.NormalizedPath).
		Msg("Image normalization completed successfully")

	return w.publish(ctx, result)
}

func (w *Worker) process(ctx context.Context, task *domain.ProcessingTask) (*domain.ProcessingResult, error) {
	failed := func(err error) (*domain.ProcessingResult, error) {
		return &domain.ProcessingResult{
			ID:      task.ID,
			ImageID: task.ImageID,
			Status:  domain.StatusFailed,
			Error:   err.Error(),
		}, err
	}

	reader, err := w.fileRepo.GetObject(ctx, task.OriginalPath)
	if err != nil {
		return failed(fmt.Errorf("failed to get original image: %w", err))
	}
	defer reader.Close()

	imageData, err := io.ReadAll(reader)
	if err != nil {
		return failed(fmt.Errorf("failed to read original image: %w", err))
	}

	result, err := w.processor.Process(ctx, task, imageData)
	if err != nil {
		if result == nil {
			return failed(err)
		}
		return result, err
	}

	return result, nil
}

func (w *Worker) publish(ctx context.Context, result *domain.ProcessingResult) error {
	if result == nil {
		return errors.New("no processing result to publish")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := w.producer.SendResult(ctx, []byte(result.ImageID), payload); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	return nil
}

func (w *Worker) updateStatus(ctx context.Context, imageID string, status domain.ImageStatus) {
	if err := w.imageRepo.UpdateStatus(ctx, imageID, status); err != nil {
		w.logger.Error().Err(err).Str("image_id", imageID).Str("status", string(status)).Msg("Failed to update status")
	}
}
