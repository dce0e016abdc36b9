package seats

// LockRequest claims a seat for the authenticated wallet. Operation defaults
// to "selecting"; minting uses "processing" internally.
type LockRequest struct {
	ConcertID   string `json:"concert_id" binding:"required,uuid"`
	SectionName string `json:"section_name" binding:"required,min=1,max=100"`
	SeatNumber  string `json:"seat_number" binding:"required,min=1,max=20"`
	Operation   string `json:"operation" binding:"omitempty,oneof=selecting processing"`
}

type UnlockRequest struct {
	ConcertID   string `json:"concert_id" binding:"required,uuid"`
	SectionName string `json:"section_name" binding:"required,min=1,max=100"`
	SeatNumber  string `json:"seat_number" binding:"required,min=1,max=20"`
}

type RenewRequest struct {
	ConcertID   string `json:"concert_id" binding:"required,uuid"`
	SectionName string `json:"section_name" binding:"required,min=1,max=100"`
	SeatNumber  string `json:"seat_number" binding:"required,min=1,max=20"`
}
