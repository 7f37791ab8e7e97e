// internal/models/models.go
package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when the requested row does not exist.
var ErrNotFound = errors.New("not found")

type Role string

const (
	RoleDriver   Role = "driver"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// IsOperator reports whether the role may reply in the operator channel.
func (r Role) IsOperator() bool {
	return r == RoleOperator || r == RoleAdmin
}

type RegistrationState string

const (
	RegAwaitingPhone     RegistrationState = "awaiting_phone"
	RegAwaitingFirstName RegistrationState = "awaiting_first_name"
	RegAwaitingLastName  RegistrationState = "awaiting_last_name"
	RegAwaitingCarpark   RegistrationState = "awaiting_carpark"
	RegCompleted         RegistrationState = "completed"
)

type User struct {
	ID                int64             `json:"id"`
	TelegramID        int64             `json:"telegram_id"`
	ChatID            int64             `json:"chat_id"`
	Phone             string            `json:"phone"`
	FirstName         string            `json:"first_name"`
	LastName          string            `json:"last_name"`
	FullName          string            `json:"full_name"`
	TempFirstName     string            `json:"temp_first_name"`
	TempLastName      string            `json:"temp_last_name"`
	Carpark           string            `json:"carpark"`
	RegistrationState RegistrationState `json:"registration_state"`
	Verified          bool              `json:"verified"`
	Role              Role              `json:"role"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type ActionType string

const (
	ActionAwaitingSupportQuestion ActionType = "awaiting_support_question"
	ActionAwaitingRejectionReason ActionType = "awaiting_rejection_reason"
	ActionBuildingRouteStart      ActionType = "building_route_start"
	ActionBuildingRouteContinue   ActionType = "building_route_continue"
)

// PendingAction is the durable continuation marker for multi-step flows.
// At most one row exists per user; setting a new one replaces the old.
type PendingAction struct {
	TelegramID       int64      `json:"telegram_id"`
	ActionType       ActionType `json:"action_type"`
	RelatedMessageID int        `json:"related_message_id"`
	ActionData       []byte     `json:"action_data"`
	CreatedAt        time.Time  `json:"created_at"`
}

// IsRouteBuilding reports whether the action belongs to the route builder.
func (p *PendingAction) IsRouteBuilding() bool {
	return p.ActionType == ActionBuildingRouteStart || p.ActionType == ActionBuildingRouteContinue
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryError   DeliveryStatus = "error"
)

type ResponseStatus string

const (
	ResponsePending   ResponseStatus = "pending"
	ResponseConfirmed ResponseStatus = "confirmed"
	ResponseRejected  ResponseStatus = "rejected"
)

// DispatchMessage is one trip notification sent to a driver. Replies are
// correlated by (phone, trip_identifier), so one button press can cover
// several co-dispatched trips.
type DispatchMessage struct {
	ID              int64          `json:"id"`
	TripIdentifier  string         `json:"trip_identifier"`
	Phone           string         `json:"phone"`
	VehicleNumber   string         `json:"vehicle_number"`
	LoadingTime     time.Time      `json:"loading_time"`
	Comment         string         `json:"comment"`
	MessageID       int            `json:"message_id"`
	Status          DeliveryStatus `json:"status"`
	ResponseStatus  ResponseStatus `json:"response_status"`
	ResponseComment string         `json:"response_comment"`
	SentAt          *time.Time     `json:"sent_at"`
	ResponseAt      *time.Time     `json:"response_at"`
}

// Point is an immutable named waypoint used by the route builder.
type Point struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketAnswered TicketStatus = "answered"
	TicketClosed   TicketStatus = "closed"
)

type SupportTicket struct {
	ID                int64        `json:"id"`
	TelegramID        int64        `json:"telegram_id"`
	Question          string       `json:"question"`
	Status            TicketStatus `json:"status"`
	OperatorMessageID int          `json:"operator_message_id"`
	UserMessageID     int          `json:"user_message_id"`
	CreatedAt         time.Time    `json:"created_at"`
	ClosedAt          *time.Time   `json:"closed_at"`
}

type TicketDirection string

const (
	DirectionUser     TicketDirection = "user"
	DirectionOperator TicketDirection = "operator"
)

type TicketMessage struct {
	ID        int64           `json:"id"`
	TicketID  int64           `json:"ticket_id"`
	Direction TicketDirection `json:"direction"`
	Text      string          `json:"text"`
	CreatedAt time.Time       `json:"created_at"`
}

// TripSubscription is a per (user, trip) opt-in for aggregate notifications.
// Deactivation once the trip fully resolves is one-way.
type TripSubscription struct {
	ID              int64      `json:"id"`
	TelegramID      int64      `json:"telegram_id"`
	ChatID          int64      `json:"chat_id"`
	TripIdentifier  string     `json:"trip_identifier"`
	IntervalMinutes int        `json:"interval_minutes"`
	LastSentAt      *time.Time `json:"last_sent_at"`
	IsActive        bool       `json:"is_active"`
}

// TripStats are the aggregate response counts for one trip.
type TripStats struct {
	TripIdentifier string `json:"trip_identifier"`
	Sent           int    `json:"sent"`
	Confirmed      int    `json:"confirmed"`
	Rejected       int    `json:"rejected"`
	Pending        int    `json:"pending"`
}

// PercentDone is the share of sent messages that received a response.
func (s TripStats) PercentDone() int {
	if s.Sent == 0 {
		return 0
	}
	return (s.Confirmed + s.Rejected) * 100 / s.Sent
}

// Resolved reports whether every sent message received a response.
func (s TripStats) Resolved() bool {
	return s.Sent > 0 && s.Pending == 0
}
