package bot

import (
	"strconv"
	"strings"
)

// Callback data is self-describing: a fixed prefix or exact string. The
// parser turns it into a typed command consumed by a single switch in the
// router, so no handler ever matches on the raw string.

type CallbackCommand interface {
	callbackCommand()
}

type SelectRoutePoint struct {
	PointID int64
}

type FinishRoute struct{}

type CancelRoute struct{}

type SelectCarpark struct {
	Name string
}

type ConfirmTrip struct {
	TripIdentifier string
}

type RejectTrip struct {
	TripIdentifier string
}

func (SelectRoutePoint) callbackCommand() {}
func (FinishRoute) callbackCommand()      {}
func (CancelRoute) callbackCommand()      {}
func (SelectCarpark) callbackCommand()    {}
func (ConfirmTrip) callbackCommand()      {}
func (RejectTrip) callbackCommand()       {}

const (
	callbackRouteFinish = "route_finish"
	callbackRouteCancel = "route_cancel"
	prefixRoutePoint    = "route_point_"
	prefixCarpark       = "carpark_"
	prefixConfirm       = "confirm_"
	prefixReject        = "reject_"
)

// ParseCallback classifies an opaque callback data string. The second
// return is false for anything outside the closed command set.
func ParseCallback(data string) (CallbackCommand, bool) {
	switch {
	case data == callbackRouteFinish:
		return FinishRoute{}, true

	case data == callbackRouteCancel:
		return CancelRoute{}, true

	case strings.HasPrefix(data, prefixRoutePoint):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, prefixRoutePoint), 10, 64)
		if err != nil {
			return nil, false
		}
		return SelectRoutePoint{PointID: id}, true

	case strings.HasPrefix(data, prefixCarpark):
		name := strings.TrimPrefix(data, prefixCarpark)
		if name == "" {
			return nil, false
		}
		return SelectCarpark{Name: name}, true

	case strings.HasPrefix(data, prefixConfirm):
		ident := strings.TrimPrefix(data, prefixConfirm)
		if ident == "" {
			return nil, false
		}
		return ConfirmTrip{TripIdentifier: ident}, true

	case strings.HasPrefix(data, prefixReject):
		ident := strings.TrimPrefix(data, prefixReject)
		if ident == "" {
			return nil, false
		}
		return RejectTrip{TripIdentifier: ident}, true
	}

	return nil, false
}
