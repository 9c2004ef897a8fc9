package models

import "time"

// Hotel is owned by a partner user; the partner is the payee for every
// booking of the hotel's rooms.
type Hotel struct {
	ID        int64     `json:"id" db:"id"`
	PartnerID int64     `json:"partner_id" db:"partner_id"`
	Name      string    `json:"name" db:"name"`
	City      string    `json:"city" db:"city"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Room belongs to a hotel. PricePerNight is in minor currency units.
type Room struct {
	ID            int64  `json:"id" db:"id"`
	HotelID       int64  `json:"hotel_id" db:"hotel_id"`
	Number        string `json:"number" db:"number"`
	PricePerNight int64  `json:"price_per_night" db:"price_per_night"`
}
