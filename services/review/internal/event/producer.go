package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jbytow/coffeetica/pkg/logger"
	pkgkafka "github.com/jbytow/coffeetica/pkg/kafka"
	"github.com/jbytow/coffeetica/services/review/internal/domain"
)

// Kafka topic constants for review domain events.
const (
	TopicReviewCreated = "coffeetica.review.created"
	TopicReviewUpdated = "coffeetica.review.updated"
	TopicReviewDeleted = "coffeetica.review.deleted"
)

// AggregateTypeReview is the aggregate type of every review event.
const AggregateTypeReview = "review"

// SourceReviewService identifies events originating from the review service.
const SourceReviewService = "review-service"

// ReviewData is the payload for review.created and review.updated.
type ReviewData struct {
	ID            int64   `json:"id"`
	CoffeeID      int64   `json:"coffee_id"`
	UserID        int64   `json:"user_id"`
	Rating        float64 `json:"rating"`
	BrewingMethod string  `json:"brewing_method"`
}

// ReviewDeletedData is the payload for review.deleted.
type ReviewDeletedData struct {
	ID       int64 `json:"id"`
	CoffeeID int64 `json:"coffee_id"`
	UserID   int64 `json:"user_id"`
}

// Publisher is the kafka surface Producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the review service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewCreated, review.ID, reviewData(review))
}

// PublishReviewUpdated publishes a review.updated event.
func (p *Producer) PublishReviewUpdated(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewUpdated, review.ID, reviewData(review))
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewDeleted, review.ID, ReviewDeletedData{
		ID:       review.ID,
		CoffeeID: review.CoffeeID,
		UserID:   review.UserID,
	})
}

func (p *Producer) publish(ctx context.Context, topic string, reviewID int64, data any) error {
	event, err := pkgkafka.NewEvent(topic, strconv.FormatInt(reviewID, 10), AggregateTypeReview, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published review event",
		slog.String("topic", topic),
		slog.Int64("review_id", reviewID),
	)
	return nil
}

func reviewData(r *domain.Review) ReviewData {
	return ReviewData{
		ID:            r.ID,
		CoffeeID:      r.CoffeeID,
		UserID:        r.UserID,
		Rating:        r.Rating,
		BrewingMethod: r.BrewingMethod,
	}
}

// Nop discards events. It stands in for Producer when Kafka is disabled.
type Nop struct{}

func (Nop) PublishReviewCreated(context.Context, *domain.Review) error { return nil }
func (Nop) PublishReviewUpdated(context.Context, *domain.Review) error { return nil }
func (Nop) PublishReviewDeleted(context.Context, *domain.Review) error { return nil }
