package domain

// PhotoRef identifies one remote photo as returned by the search
// service, with the fields needed to derive its download locator
type PhotoRef struct {
	RemoteID string `json:"id"`
	Server   string `json:"server"`
	Secret   string `json:"secret"`
	Owner    string `json:"owner,omitempty"`
	Title    string `json:"title,omitempty"`
}

// PhotoPage is one page of a remote photo search. Items may be empty
// with TotalPages >= 1, meaning the service knows the coordinate but
// has no photos for it.
type PhotoPage struct {
	Items      []PhotoRef
	Page       int
	TotalPages int
	PerPage    int
	Total      int
}
