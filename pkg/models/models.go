package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleLibrarian Role = "librarian"
)

// users table
type User struct {
	ID           string    `json:"-" db:"id"`
	Name         string    `json:"name" db:"name"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"dateCreated" db:"created_at"`
}

// sections table
type Section struct {
	Slug         string    `json:"slug" db:"slug"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	DateCreated  time.Time `json:"dateCreated" db:"date_created"`
	DateModified time.Time `json:"dateModified" db:"date_modified"`
	Books        []Book    `json:"books,omitempty" db:"-"`
}

// books table
type Book struct {
	Slug         string    `json:"slug" db:"slug"`
	Title        string    `json:"title" db:"title"`
	Author       string    `json:"author" db:"author"`
	Description  string    `json:"description" db:"description"`
	SectionSlug  string    `json:"sectionSlug" db:"section_slug"`
	DateCreated  time.Time `json:"dateCreated" db:"date_created"`
	DateModified time.Time `json:"dateModified" db:"date_modified"`
}

// BookDetail is a book together with its section and reader activity.
type BookDetail struct {
	Book
	Section     Section    `json:"section"`
	Feedbacks   []Feedback `json:"feedbacks"`
	IssuedCount int        `json:"issuedCount"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// requests table
type Request struct {
	Slug        string        `json:"slug" db:"slug"`
	Username    string        `json:"username" db:"username"`
	BookSlug    string        `json:"bookSlug" db:"book_slug"`
	Days        int           `json:"days" db:"days"`
	Status      RequestStatus `json:"status" db:"status"`
	DateCreated time.Time     `json:"dateCreated" db:"date_created"`
}

type IssueStatus string

const (
	IssueCurrent  IssueStatus = "current"
	IssueReturned IssueStatus = "returned"
)

// issued_books table
type IssuedBook struct {
	Slug             string      `json:"slug" db:"slug"`
	Username         string      `json:"username" db:"username"`
	IssuedByUsername *string     `json:"issuedByUsername" db:"issued_by_username"`
	BookSlug         string      `json:"bookSlug" db:"book_slug"`
	Status           IssueStatus `json:"status" db:"status"`
	ToDate           time.Time   `json:"toDate" db:"to_date"`
	DateCreated      time.Time   `json:"dateCreated" db:"date_created"`
}

// feedbacks table
type Feedback struct {
	Slug         string    `json:"slug" db:"slug"`
	Username     string    `json:"username" db:"username"`
	BookSlug     string    `json:"bookSlug" db:"book_slug"`
	Rating       int       `json:"rating" db:"rating"`
	Content      string    `json:"content" db:"content"`
	DateCreated  time.Time `json:"dateCreated" db:"date_created"`
	DateModified time.Time `json:"dateModified" db:"date_modified"`
}

// SectionCount is one bar of the per-user issuance statistics.
type SectionCount struct {
	Title string `json:"title" db:"title"`
	Count int    `json:"count" db:"count"`
}

type EventType string

const (
	EventRequestSubmitted EventType = "request.submitted"
	EventRequestWithdrawn EventType = "request.withdrawn"
	EventRequestAccepted  EventType = "request.accepted"
	EventRequestRejected  EventType = "request.rejected"
	EventRequestExpired   EventType = "request.expired"
	EventBookIssued       EventType = "book.issued"
	EventBookReturned     EventType = "book.returned"
	EventBookOverdue      EventType = "book.overdue"
)

// LifecycleEvent is pushed to websocket and TCP subscribers after a
// borrow-lifecycle transition commits.
type LifecycleEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Slug       string    `json:"slug"`
	Username   string    `json:"username"`
	BookSlug   string    `json:"bookSlug"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Announcement is the UDP broadcast payload.
type Announcement struct {
	Type      string `json:"type"` // "announcement"
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
