package services

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/apiclient"
	"github.com/jakechorley/desk-booking/pkg/model"
)

// Notifier receives the user-facing outcome of every mutation
type Notifier interface {
	Success(message string)
	Error(message string)
}

// NopNotifier discards notifications
type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}

// LogNotifier writes notifications to a logger
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Success(message string) { n.Logger.Info(message) }
func (n LogNotifier) Error(message string)   { n.Logger.Error(message) }

// operation describes the wording used for one kind of mutation
type operation struct {
	name     string
	success  string
	failure  string
	conflict string
}

var (
	opCreateDesk        = operation{name: "create_desk", success: "Desk created successfully!", failure: "Failed to create desk", conflict: "A desk with this name already exists on the floor"}
	opUpdateDesk        = operation{name: "update_desk", success: "Desk updated successfully!", failure: "Failed to update desk", conflict: "A desk with this name already exists on the floor"}
	opDeleteDesk        = operation{name: "delete_desk", success: "Desk deleted successfully!", failure: "Failed to delete desk", conflict: "Desk has reservations and cannot be deleted"}
	opCreateFloor       = operation{name: "create_floor", success: "Floor created successfully!", failure: "Failed to create floor", conflict: "Floor number already exists"}
	opUpdateFloor       = operation{name: "update_floor", success: "Floor updated successfully!", failure: "Failed to update floor", conflict: "Floor number already exists"}
	opDeleteFloor       = operation{name: "delete_floor", success: "Floor deleted successfully!", failure: "Failed to delete floor", conflict: "Floor still has desks and cannot be deleted"}
	opCreateReservation = operation{name: "create_reservation", success: "Reservation created successfully!", failure: "Failed to create reservation", conflict: "Desk is already reserved for the selected time"}
	opUpdateReservation = operation{name: "update_reservation", success: "Reservation updated successfully!", failure: "Failed to update reservation", conflict: "Desk is already reserved for the selected time"}
	opCancelReservation = operation{name: "cancel_reservation", success: "Reservation cancelled successfully", failure: "Failed to cancel reservation", conflict: "Reservation can no longer be cancelled"}
	opReservationStatus = operation{name: "update_reservation_status", success: "Reservation status updated", failure: "Failed to update reservation status", conflict: "Reservation status cannot be changed"}
	opDeleteReservation = operation{name: "delete_reservation", success: "Reservation deleted successfully!", failure: "Failed to delete reservation", conflict: "Reservation cannot be deleted"}
	opLogin             = operation{name: "login", success: "Login successful!", failure: "Login failed"}
	opWindowsLogin      = operation{name: "windows_login", success: "Windows Authentication successful!", failure: "Windows Authentication failed"}
	opLogout            = operation{name: "logout", success: "Logged out successfully", failure: "Logout failed"}
)

func opAssignRole(role, email string) operation {
	return operation{
		name:     "assign_role",
		success:  fmt.Sprintf("Role %q assigned to %s", role, email),
		failure:  fmt.Sprintf("Failed to assign role %q", role),
		conflict: fmt.Sprintf("User already has role %q", role),
	}
}

func opRemoveRole(role, email string) operation {
	return operation{
		name:    "remove_role",
		success: fmt.Sprintf("Role %q removed from %s", role, email),
		failure: fmt.Sprintf("Failed to remove role %q", role),
	}
}

func opCreateRole(name string) operation {
	return operation{
		name:     "create_role",
		success:  fmt.Sprintf("Role %q created successfully!", name),
		failure:  fmt.Sprintf("Failed to create role %q", name),
		conflict: fmt.Sprintf("Role %q already exists", name),
	}
}

// failureMessage picks the user-facing text for a failed mutation: validation
// problems as reported, conflicts with the operation's conflict wording plus
// any server detail, otherwise the server message or the operation fallback
func failureMessage(op operation, err error) string {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}

	apiErr, ok := apiclient.AsAPIError(err)
	if !ok {
		return op.failure
	}

	serverMessage := apiErr.Message
	if apiErr.Status == 0 || serverMessage == fmt.Sprintf("HTTP %d Error", apiErr.Status) {
		serverMessage = ""
	}

	if apiErr.Status == http.StatusConflict && op.conflict != "" {
		if serverMessage == "" || serverMessage == op.conflict {
			return op.conflict
		}
		return op.conflict + ": " + serverMessage
	}
	if apiErr.IsTransport() {
		return op.failure + ": " + apiErr.Message
	}
	if serverMessage != "" {
		return serverMessage
	}
	return op.failure
}
