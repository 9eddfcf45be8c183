package model

// Marker is a rendered map pin for one visible item with coordinates.
type Marker struct {
	ItemID string  `json:"item_id"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Icon   string  `json:"icon"`
	Color  string  `json:"color"`
}
