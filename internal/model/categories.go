package model

// DefaultCategories are the stock adventure-racing gear categories offered
// when adding items. Free-text categories are equally valid.
var DefaultCategories = []string{
	"Navigation",
	"Clothing",
	"Footwear",
	"Nutrition/Hydration",
	"Bike Gear",
	"Paddle Gear",
	"Safety/Medical",
	"Lighting",
	"Sleep (expedition)",
	"Miscellaneous",
}
