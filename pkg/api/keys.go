package api

import (
	"encoding/json"
	"strconv"

	"github.com/jakechorley/desk-booking/pkg/cache"
)

// Key is the cache key type shared with the cache layer
type Key = cache.Key

// filterPart canonicalises a filter struct into one key segment.
// encoding/json sorts map keys, and struct fields keep declaration order,
// so equal filters always produce the same segment.
func filterPart(filters any) string {
	if filters == nil {
		return "{}"
	}
	data, err := json.Marshal(filters)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func id(n int) string {
	return strconv.Itoa(n)
}

// DeskFilters parameterises desk list keys
type DeskFilters struct {
	FloorID     int    `json:"floorId,omitempty"`
	IsAvailable *bool  `json:"isAvailable,omitempty"`
	StartTime   string `json:"startTime,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
}

// FloorFilters parameterises floor list keys
type FloorFilters struct {
	FloorNumber int   `json:"floorNumber,omitempty"`
	HasDesks    *bool `json:"hasDesks,omitempty"`
}

// ReservationFilters parameterises reservation list keys
type ReservationFilters struct {
	UserID    string `json:"userId,omitempty"`
	DeskID    int    `json:"deskId,omitempty"`
	Status    string `json:"status,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

type deskKeys struct{}

// DeskKeys is the key namespace for desks
var DeskKeys deskKeys

func (deskKeys) All() Key                          { return Key{"desks"} }
func (k deskKeys) Lists() Key                      { return k.All().With("list") }
func (k deskKeys) List(filters DeskFilters) Key    { return k.Lists().With(filterPart(filters)) }
func (k deskKeys) Details() Key                    { return k.All().With("detail") }
func (k deskKeys) Detail(deskID int) Key           { return k.Details().With(id(deskID)) }
func (k deskKeys) ByFloor(floorID int) Key         { return k.All().With("floor", id(floorID)) }
func (k deskKeys) AvailableAll() Key               { return k.All().With("available") }
func (k deskKeys) Available(start, end string) Key { return k.AvailableAll().With(start + "|" + end) }

type floorKeys struct{}

// FloorKeys is the key namespace for floors
var FloorKeys floorKeys

func (floorKeys) All() Key                        { return Key{"floors"} }
func (k floorKeys) Lists() Key                    { return k.All().With("list") }
func (k floorKeys) List(filters FloorFilters) Key { return k.Lists().With(filterPart(filters)) }
func (k floorKeys) Details() Key                  { return k.All().With("detail") }
func (k floorKeys) Detail(floorID int) Key        { return k.Details().With(id(floorID)) }

type reservationKeys struct{}

// ReservationKeys is the key namespace for reservations
var ReservationKeys reservationKeys

func (reservationKeys) All() Key     { return Key{"reservations"} }
func (k reservationKeys) Lists() Key { return k.All().With("list") }
func (k reservationKeys) List(filters ReservationFilters) Key {
	return k.Lists().With(filterPart(filters))
}
func (k reservationKeys) Details() Key { return k.All().With("detail") }
func (k reservationKeys) Detail(reservationID int) Key {
	return k.Details().With(id(reservationID))
}
func (k reservationKeys) Mine() Key             { return k.All().With("my") }
func (k reservationKeys) ByDeskAll() Key        { return k.All().With("desk") }
func (k reservationKeys) ByDesk(deskID int) Key { return k.ByDeskAll().With(id(deskID)) }
func (k reservationKeys) Active() Key           { return k.All().With("active") }
func (k reservationKeys) Past() Key             { return k.All().With("past") }
func (k reservationKeys) Upcoming() Key         { return k.All().With("upcoming") }

// ListViews returns every reservation list-shaped key prefix, i.e. everything
// except individual details.
func (k reservationKeys) ListViews() []Key {
	return []Key{k.Lists(), k.Mine(), k.ByDeskAll(), k.Active(), k.Past(), k.Upcoming()}
}

type roleKeys struct{}

// RoleKeys is the key namespace for roles
var RoleKeys roleKeys

func (roleKeys) All() Key                      { return Key{"roles"} }
func (k roleKeys) Lists() Key                  { return k.All().With("list") }
func (k roleKeys) UserRoles(userID string) Key { return k.All().With("user", userID) }

type userKeys struct{}

// UserKeys is the key namespace for users
var UserKeys userKeys

func (userKeys) All() Key                   { return Key{"users"} }
func (k userKeys) Lists() Key               { return k.All().With("list") }
func (k userKeys) Details() Key             { return k.All().With("detail") }
func (k userKeys) Detail(userID string) Key { return k.Details().With(userID) }

type authKeys struct{}

// AuthKeys is the key namespace for the current session
var AuthKeys authKeys

func (authKeys) All() Key  { return Key{"auth"} }
func (k authKeys) Me() Key { return k.All().With("me") }
