package model

// ReservationStatus is the lifecycle status reported by the booking service
type ReservationStatus string

const (
	StatusActive    ReservationStatus = "Active"
	StatusScheduled ReservationStatus = "Scheduled"
	StatusCancelled ReservationStatus = "Cancelled"
	StatusCompleted ReservationStatus = "Completed"
)

// Well-known role names
const (
	RoleUser     = "User"
	RoleTeamLead = "TeamLead"
	RoleAdmin    = "Admin"
)

// Desk is a bookable desk as returned by the service.
// IsAvailable is a snapshot computed by the server at response time.
type Desk struct {
	DeskID               int        `json:"deskId"`
	DeskName             string     `json:"deskName"`
	FloorID              int        `json:"floorId"`
	FloorNumber          string     `json:"floorNumber"`
	IsAvailable          bool       `json:"isAvailable"`
	NextReservationStart *Timestamp `json:"nextReservationStart,omitempty"`
}

// Floor is an office floor
type Floor struct {
	FloorID     int       `json:"floorId"`
	FloorNumber int       `json:"floorNumber"`
	DeskCount   int       `json:"deskCount"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// Reservation is a desk booking. Duration, IsActive, IsPast and IsUpcoming are
// derived by the server and are not recomputed on the client.
type Reservation struct {
	ReservationID int               `json:"reservationId"`
	UserID        string            `json:"userId"`
	DeskID        int               `json:"deskId"`
	DeskName      string            `json:"deskName"`
	FloorNumber   int               `json:"floorNumber"`
	StartTime     Timestamp         `json:"startTime"`
	EndTime       Timestamp         `json:"endTime"`
	Status        ReservationStatus `json:"status"`
	CreatedAt     Timestamp         `json:"createdAt"`
	Duration      string            `json:"duration"`
	IsActive      bool              `json:"isActive"`
	IsPast        bool              `json:"isPast"`
	IsUpcoming    bool              `json:"isUpcoming"`
}

// MyReservations is the partitioned response of the my-reservations endpoint
type MyReservations struct {
	ActiveReservations   []Reservation `json:"activeReservations"`
	UpcomingReservations []Reservation `json:"upcomingReservations"`
	PastReservations     []Reservation `json:"pastReservations"`
}

// Flatten concatenates the partitions in active, upcoming, past order
func (m MyReservations) Flatten() []Reservation {
	out := make([]Reservation, 0, len(m.ActiveReservations)+len(m.UpcomingReservations)+len(m.PastReservations))
	out = append(out, m.ActiveReservations...)
	out = append(out, m.UpcomingReservations...)
	out = append(out, m.PastReservations...)
	return out
}

// User is an authenticated account and its role names
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	UserName string   `json:"userName"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether the user holds the named role
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleDetail is the admin view of a role
type RoleDetail struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NormalizedName string `json:"normalizedName"`
}

// Request DTOs

type CreateDeskRequest struct {
	DeskName string `json:"deskName" validate:"required,min=1,max=50"`
	FloorID  int    `json:"floorId" validate:"required,gt=0"`
}

type UpdateDeskRequest struct {
	DeskName string `json:"deskName" validate:"required,min=1,max=50"`
	FloorID  int    `json:"floorId" validate:"required,gt=0"`
}

// DeskAvailabilityRequest uses the capitalised field names the service binds
type DeskAvailabilityRequest struct {
	StartTime Timestamp `json:"StartTime"`
	EndTime   Timestamp `json:"EndTime"`
}

type CreateFloorRequest struct {
	FloorNumber int `json:"floorNumber" validate:"required,gt=0"`
}

type UpdateFloorRequest struct {
	FloorNumber int `json:"floorNumber" validate:"required,gt=0"`
}

type CreateReservationRequest struct {
	DeskID    int       `json:"deskId" validate:"required,gt=0"`
	StartTime Timestamp `json:"startTime"`
	EndTime   Timestamp `json:"endTime"`
}

type UpdateReservationRequest struct {
	DeskID    int       `json:"deskId" validate:"required,gt=0"`
	StartTime Timestamp `json:"startTime"`
	EndTime   Timestamp `json:"endTime"`
}

type UpdateReservationStatusRequest struct {
	Status ReservationStatus `json:"status" validate:"required,oneof=Active Scheduled Cancelled Completed"`
}

type AssignRoleRequest struct {
	UserID   string `json:"userId" validate:"required,min=1"`
	RoleName string `json:"roleName" validate:"required,min=1"`
}

type AssignRoleResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type CreateRoleRequest struct {
	Name string `json:"name" validate:"required,min=1,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginResponse struct {
	JWTToken string `json:"jwtToken"`
}
