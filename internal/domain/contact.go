package domain

// Contact is a requester identified by a phone-like ID. Contacts are
// created lazily on the first request from a new requester.
type Contact struct {
	Phone string
	Name  string
}

// Address is a saved address for a contact. A saved address short-circuits
// geocoding on subsequent requests using the same text.
type Address struct {
	ContactPhone string
	Text         string
	Lat          float64
	Lng          float64
}
