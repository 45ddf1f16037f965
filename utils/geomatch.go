package utils

import (
	"math"
	"sort"
	"strings"
	"time"

	"proquote/models"
)

const earthRadiusMiles = 3959

// DefaultServiceRadiusMiles applies when a business has no radius configured.
const DefaultServiceRadiusMiles = 25

// Location is the target of a quote request as far as matching is concerned.
type Location struct {
	City    string
	State   string
	Zipcode string
	Lat     *float64
	Lng     *float64
}

// HaversineMiles computes the great-circle distance between two points in
// miles.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Matches reports whether a business services a location. The signals are
// independent; any one of them is sufficient:
//
//  1. the location zipcode is in the business's service zipcode set
//  2. great-circle distance is within the service radius (both coordinate
//     pairs required; silently skipped otherwise)
//  3. same city and state-equivalent state as the business itself
//  4. the location is a member of the named service areas (exact city match;
//     case-sensitive by long-standing behavior)
//  5. statewide fallback: state-equivalent and the location has no city
func Matches(b *models.Business, loc Location) bool {
	if matchesZipcode(b, loc) {
		return true
	}
	if matchesRadius(b, loc) {
		return true
	}
	if matchesHomeCity(b, loc) {
		return true
	}
	if matchesServiceArea(b, loc) {
		return true
	}
	return matchesStatewide(b, loc)
}

func matchesZipcode(b *models.Business, loc Location) bool {
	if loc.Zipcode == "" {
		return false
	}
	for _, zip := range b.ServiceZipcodes {
		if zip == loc.Zipcode {
			return true
		}
	}
	return false
}

func matchesRadius(b *models.Business, loc Location) bool {
	if b.Lat == nil || b.Lng == nil || loc.Lat == nil || loc.Lng == nil {
		return false
	}
	radius := b.ServiceRadiusMiles
	if radius <= 0 {
		radius = DefaultServiceRadiusMiles
	}
	return HaversineMiles(*b.Lat, *b.Lng, *loc.Lat, *loc.Lng) <= float64(radius)
}

func matchesHomeCity(b *models.Business, loc Location) bool {
	if loc.City == "" || b.City == "" {
		return false
	}
	return strings.EqualFold(loc.City, b.City) && StateEquivalent(loc.State, b.State)
}

func matchesServiceArea(b *models.Business, loc Location) bool {
	if loc.City == "" {
		return false
	}
	for _, area := range b.ServiceAreas {
		if area.City != loc.City {
			continue
		}
		// A bare city entry matches any state; "City, State" requires both.
		if area.State == "" || StateEquivalent(area.State, loc.State) {
			return true
		}
	}
	return false
}

func matchesStatewide(b *models.Business, loc Location) bool {
	return loc.City == "" && StateEquivalent(b.State, loc.State)
}

// BusinessSort names a display ordering for directory results.
type BusinessSort string

const (
	// SortFeaturedNewest puts active featured listings first, then most
	// recently created.
	SortFeaturedNewest BusinessSort = "featured_newest"
	// SortFeaturedMostReviewed puts active featured listings first, then
	// highest review count.
	SortFeaturedMostReviewed BusinessSort = "featured_most_reviewed"
)

// SortBusinesses orders a result set in place using the named strategy.
func SortBusinesses(businesses []models.Business, strategy BusinessSort) {
	now := time.Now()
	sort.SliceStable(businesses, func(i, j int) bool {
		fi, fj := businesses[i].FeaturedActive(now), businesses[j].FeaturedActive(now)
		if fi != fj {
			return fi
		}
		switch strategy {
		case SortFeaturedMostReviewed:
			return businesses[i].ReviewCount > businesses[j].ReviewCount
		default:
			return businesses[i].CreatedAt.After(businesses[j].CreatedAt)
		}
	})
}
