package fakeapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/model"
)

func pathID(r *http.Request) int {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	return id
}

func respond(w http.ResponseWriter, body any, herr *httpError) {
	if herr != nil {
		writeError(w, herr)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func done(w http.ResponseWriter, herr *httpError) {
	if herr != nil {
		writeError(w, herr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Auth

func (s *Server) windowsLogin(w http.ResponseWriter, r *http.Request) {
	user, herr := s.store.userByEmail(s.windows)
	if herr != nil {
		writeError(w, newHTTPError(http.StatusUnauthorized, "Windows authentication failed"))
		return
	}
	token, err := s.sign(user)
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Expires:  s.now().Add(s.tokenTTL),
	})
	s.logger.Debug("Integrated login", zap.String("email", user.Email))
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) passwordLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	user, herr := s.store.authenticate(req.Email, req.Password)
	if herr != nil {
		writeError(w, herr)
		return
	}
	token, err := s.sign(user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.LoginResponse{JWTToken: token})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Users and roles

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, caller(r))
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.users())
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	user, herr := s.store.user(mux.Vars(r)["id"])
	respond(w, user, herr)
}

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.allRoles())
}

func (s *Server) userRoles(w http.ResponseWriter, r *http.Request) {
	user, herr := s.store.user(mux.Vars(r)["id"])
	if herr != nil {
		writeError(w, herr)
		return
	}
	writeJSON(w, http.StatusOK, user.Roles)
}

func (s *Server) assignRole(w http.ResponseWriter, r *http.Request) {
	var req model.AssignRoleRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	respond(w, model.AssignRoleResponse{Success: true, Message: "Role assigned"}, s.store.assignRole(req.UserID, req.RoleName))
}

func (s *Server) removeRole(w http.ResponseWriter, r *http.Request) {
	var req model.AssignRoleRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	respond(w, model.AssignRoleResponse{Success: true, Message: "Role removed"}, s.store.removeRole(req.UserID, req.RoleName))
}

func (s *Server) createRole(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRoleRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	if herr := s.store.createRole(req.Name); herr != nil {
		writeError(w, herr)
		return
	}
	writeCreated(w, s.prefix+"/role/all-roles")
}

// Floors

func (s *Server) listFloors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.allFloors())
}

func (s *Server) getFloor(w http.ResponseWriter, r *http.Request) {
	floor, herr := s.store.floor(pathID(r))
	respond(w, floor, herr)
}

func (s *Server) createFloor(w http.ResponseWriter, r *http.Request) {
	var req model.CreateFloorRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	id, herr := s.store.createFloor(req.FloorNumber)
	if herr != nil {
		writeError(w, herr)
		return
	}
	writeCreated(w, fmt.Sprintf("%s/floor/get/%d", s.prefix, id))
}

func (s *Server) updateFloor(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateFloorRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	done(w, s.store.updateFloor(pathID(r), req.FloorNumber))
}

func (s *Server) deleteFloor(w http.ResponseWriter, r *http.Request) {
	done(w, s.store.deleteFloor(pathID(r)))
}

// Desks

func (s *Server) listDesks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.allDesks())
}

func (s *Server) getDesk(w http.ResponseWriter, r *http.Request) {
	desk, herr := s.store.desk(pathID(r))
	respond(w, desk, herr)
}

func (s *Server) desksOnFloor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.desksOnFloor(pathID(r)))
}

func (s *Server) availableDesks(w http.ResponseWriter, r *http.Request) {
	var req model.DeskAvailabilityRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	writeJSON(w, http.StatusOK, s.store.availableDesks(req.StartTime.Time, req.EndTime.Time))
}

func (s *Server) createDesk(w http.ResponseWriter, r *http.Request) {
	var req model.CreateDeskRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	id, herr := s.store.createDesk(req.DeskName, req.FloorID)
	if herr != nil {
		writeError(w, herr)
		return
	}
	writeCreated(w, fmt.Sprintf("%s/desk/get/%d", s.prefix, id))
}

func (s *Server) updateDesk(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateDeskRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	done(w, s.store.updateDesk(pathID(r), req.DeskName, req.FloorID))
}

func (s *Server) deleteDesk(w http.ResponseWriter, r *http.Request) {
	done(w, s.store.deleteDesk(pathID(r)))
}

// Reservations

func (s *Server) listReservations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.listReservations(func(*reservation) bool { return true }))
}

func (s *Server) getReservation(w http.ResponseWriter, r *http.Request) {
	reservation, herr := s.store.getReservation(pathID(r))
	if herr == nil && reservation.UserID != caller(r).ID && !caller(r).HasRole(model.RoleAdmin) && !caller(r).HasRole(model.RoleTeamLead) {
		herr = errForbidden
	}
	respond(w, reservation, herr)
}

func (s *Server) mine(r *http.Request, keep func(model.Reservation) bool) []model.Reservation {
	userID := caller(r).ID
	all := s.store.listReservations(func(res *reservation) bool { return res.userID == userID })
	out := []model.Reservation{}
	for _, res := range all {
		if keep(res) {
			out = append(out, res)
		}
	}
	return out
}

func (s *Server) myReservations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.MyReservations{
		ActiveReservations:   s.mine(r, func(res model.Reservation) bool { return res.IsActive }),
		UpcomingReservations: s.mine(r, func(res model.Reservation) bool { return res.IsUpcoming }),
		PastReservations:     s.mine(r, func(res model.Reservation) bool { return res.IsPast || (!res.IsUpcoming && !res.IsActive) }),
	})
}

func (s *Server) deskReservations(w http.ResponseWriter, r *http.Request) {
	deskID := pathID(r)
	writeJSON(w, http.StatusOK, s.store.listReservations(func(res *reservation) bool { return res.DeskID == deskID }))
}

func (s *Server) activeReservations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mine(r, func(res model.Reservation) bool { return res.IsActive }))
}

func (s *Server) pastReservations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mine(r, func(res model.Reservation) bool { return res.IsPast }))
}

func (s *Server) upcomingReservations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mine(r, func(res model.Reservation) bool { return res.IsUpcoming }))
}

func (s *Server) createReservation(w http.ResponseWriter, r *http.Request) {
	var req model.CreateReservationRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	id, herr := s.store.createReservation(caller(r).ID, req)
	if herr != nil {
		writeError(w, herr)
		return
	}
	writeCreated(w, fmt.Sprintf("%s/reservation/get/%d", s.prefix, id))
}

func (s *Server) updateReservation(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateReservationRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	done(w, s.store.updateReservation(pathID(r), caller(r), req))
}

func (s *Server) reservationStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateReservationStatusRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	done(w, s.store.setReservationStatus(pathID(r), caller(r), req.Status))
}

func (s *Server) cancelReservation(w http.ResponseWriter, r *http.Request) {
	done(w, s.store.cancelReservation(pathID(r), caller(r)))
}

func (s *Server) deleteReservation(w http.ResponseWriter, r *http.Request) {
	done(w, s.store.deleteReservation(pathID(r), caller(r)))
}
