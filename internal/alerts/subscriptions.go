package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/weather-cache-service/internal/cache"
	"github.com/couchcryptid/weather-cache-service/internal/domain"
)

// SubscriptionKey returns the hash holding a user's subscriptions, one field per location.
func SubscriptionKey(userID string) string {
	return "alerts:subscriptions:" + userID
}

type subscribeInput struct {
	UserID     string             `json:"user_id" validate:"required,max=128"`
	LocationID string             `json:"location_id" validate:"required,max=128"`
	AlertTypes []domain.AlertType `json:"alert_types" validate:"dive,required"`
}

// Subscribe records that userID wants alertTypes for locationID. An empty type
// list means every type. Each call refreshes the subscription set's 30-day TTL.
func (e *Engine) Subscribe(ctx context.Context, userID, locationID string, alertTypes []domain.AlertType) (domain.Subscription, error) {
	types := make([]domain.AlertType, 0, len(alertTypes))
	for _, t := range alertTypes {
		types = append(types, domain.AlertType(strings.ToUpper(strings.TrimSpace(string(t)))))
	}
	if err := e.validate.Struct(subscribeInput{UserID: userID, LocationID: locationID, AlertTypes: types}); err != nil {
		return domain.Subscription{}, validationError(err)
	}
	if e.locations != nil {
		if _, err := e.locations.ByID(ctx, locationID); err != nil {
			if errors.Is(err, domain.ErrLocationNotFound) {
				return domain.Subscription{}, err
			}
			return domain.Subscription{}, fmt.Errorf("resolve location %s: %w", locationID, err)
		}
	}

	sub := domain.Subscription{
		UserID:       userID,
		LocationID:   locationID,
		AlertTypes:   types,
		SubscribedAt: e.clock.Now().UTC(),
	}
	if err := e.gw.HSetWithTTL(ctx, SubscriptionKey(userID), locationID, sub, cache.TTLSubscriptions); err != nil {
		return domain.Subscription{}, err
	}
	e.logger.Info("alert subscription saved", "user", userID, "location", locationID, "types", len(types))
	return sub, nil
}

// Unsubscribe removes the (userID, locationID) subscription if present.
func (e *Engine) Unsubscribe(ctx context.Context, userID, locationID string) error {
	if userID == "" || locationID == "" {
		return &domain.ValidationError{Field: "subscription", Reason: "user and location are required"}
	}
	return e.gw.HDel(ctx, SubscriptionKey(userID), locationID)
}

// SubscriptionList is a user's subscriptions, tagged with store availability.
type SubscriptionList struct {
	Subscriptions []domain.Subscription `json:"subscriptions"`
	Available     bool                  `json:"available"`
}

// Subscriptions lists a user's subscriptions ordered by location. When the
// store is unreachable the list is empty and Available is false.
func (e *Engine) Subscriptions(ctx context.Context, userID string) SubscriptionList {
	fields, err := e.gw.HGetAll(ctx, SubscriptionKey(userID))
	if err != nil {
		return SubscriptionList{Subscriptions: []domain.Subscription{}, Available: false}
	}

	subs := make([]domain.Subscription, 0, len(fields))
	for loc, raw := range fields {
		var s domain.Subscription
		if err := json.Unmarshal(raw, &s); err != nil {
			e.logger.Warn("skipping undecodable subscription", "user", userID, "location", loc, "error", err)
			continue
		}
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].LocationID < subs[j].LocationID })
	return SubscriptionList{Subscriptions: subs, Available: true}
}
