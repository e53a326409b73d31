package models

import "math"

// User is the directory snapshot of a marketplace member.
type User struct {
	ID             string  `json:"id" db:"id"`
	Name           string  `json:"name" db:"name"`
	Email          string  `json:"email" db:"email"`
	Credits        float64 `json:"credits" db:"credits"`
	GigsCompleted  int     `json:"gigsCompleted" db:"gigs_completed"`
	CompletionRate float64 `json:"completionRate" db:"completion_rate"`
	Ratings        []int   `json:"ratings" db:"-"`
}

// Gig is the offering a ticket negotiates over.
type Gig struct {
	ID       string  `json:"id" db:"id"`
	Title    string  `json:"title" db:"title"`
	Price    float64 `json:"price" db:"price"`
	SellerID string  `json:"sellerId" db:"seller_id"`
	Rating   float64 `json:"rating" db:"rating"`
}

// SellerStats is the result of recording a completed order.
type SellerStats struct {
	GigsCompleted  int
	TotalOrders    int
	CompletionRate float64
}

// CompletionRate returns completed/total*100 rounded to two decimals, or 0
// when there are no orders.
func CompletionRate(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round(float64(completed)/float64(total)*100, 2)
}

// AverageRating returns the mean of ratings rounded to one decimal, or 0 for
// an empty list.
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return round(float64(sum)/float64(len(ratings)), 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
