package geo

import (
	"errors"
	"math"
	"testing"
)

var office = Point{Latitude: -6.2088, Longitude: 106.8456}

func TestDistance(t *testing.T) {
	cases := []struct {
		name string
		a, b Point
		want float64
	}{
		{"same point", office, office, 0},
		{"one degree of latitude", Point{1, 0}, Point{2, 0}, EarthRadiusMeters * math.Pi / 180},
		{"one degree of longitude at equator", Point{0, 10}, Point{0, 11}, EarthRadiusMeters * math.Pi / 180},
		{"symmetric", Point{2, 0}, Point{1, 0}, EarthRadiusMeters * math.Pi / 180},
	}
	for _, c := range cases {
		got := Distance(c.a, c.b)
		if math.Abs(got-c.want) > 1e-6 {
			t.Errorf("%s: Distance = %f, want %f", c.name, got, c.want)
		}
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	for _, meters := range []float64{1, 50, 150, 5000, 50000} {
		for _, bearing := range []float64{0, 45, 90, 180, 270} {
			p := Offset(office, meters, bearing)
			got := Distance(office, p)
			if math.Abs(got-meters) > 1e-3 {
				t.Errorf("Offset(%v m, %v°) distance = %f", meters, bearing, got)
			}
		}
	}
}

func TestWithinBoundary(t *testing.T) {
	p := Offset(office, 150, 90)
	d := Distance(p, office)

	inside, got, err := Within(p, office, d)
	if err != nil || !inside {
		t.Fatalf("Within at exactly the radius = %v (err %v), want inside", inside, err)
	}
	if got != d {
		t.Errorf("distance = %f, want %f", got, d)
	}

	inside, _, err = Within(p, office, d-1e-6)
	if err != nil || inside {
		t.Fatalf("Within at radius+ε = %v (err %v), want outside", inside, err)
	}
}

func TestWithinRefusesUnloadedPoints(t *testing.T) {
	if _, _, err := Within(Point{}, office, 100); !errors.Is(err, ErrLocationUnavailable) {
		t.Errorf("user (0,0): err = %v, want ErrLocationUnavailable", err)
	}
	if _, _, err := Within(office, Point{}, 100); !errors.Is(err, ErrLocationUnavailable) {
		t.Errorf("center (0,0): err = %v, want ErrLocationUnavailable", err)
	}
}

func TestPointValid(t *testing.T) {
	valid := []Point{{0, 0}, {90, 180}, {-90, -180}, office}
	invalid := []Point{{91, 0}, {0, 181}, {-90.1, 0}, {0, -180.5}}
	for _, p := range valid {
		if !p.Valid() {
			t.Errorf("%v.Valid() = false, want true", p)
		}
	}
	for _, p := range invalid {
		if p.Valid() {
			t.Errorf("%v.Valid() = true, want false", p)
		}
	}
}
