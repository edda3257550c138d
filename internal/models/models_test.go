package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantGetCoords(t *testing.T) {
	p := Participant{
		Location: Coordinates{Lat: 48.8566, Lng: 2.3522},
	}

	coords := p.GetCoords()

	assert.Equal(t, 48.8566, coords.Lat)
	assert.Equal(t, 2.3522, coords.Lng)
}

func TestRoundCoordinate(t *testing.T) {
	assert.Equal(t, 1.23457, RoundCoordinate(1.2345674))
	assert.Equal(t, -0.12346, RoundCoordinate(-0.123456))
}

func TestMatrixEntryValue(t *testing.T) {
	e := MatrixEntry{Distance: 1000, Duration: 60}

	assert.Equal(t, 60.0, e.Value(KeyDuration))
	assert.Equal(t, 1000.0, e.Value(KeyDistance))
}

func TestMatrixCloneIsDeep(t *testing.T) {
	m := Matrix{"a": {"b": {Distance: 1, Duration: 2}}}

	cp := m.Clone()
	cp["a"]["b"] = MatrixEntry{Distance: 9}

	e, ok := m.Edge("a", "b")
	require.True(t, ok)
	assert.Equal(t, 1.0, e.Distance)

	_, ok = m.Edge("b", "a")
	assert.False(t, ok)
}

func TestNewCovoitDriverAndPassenger(t *testing.T) {
	dest := Coordinates{Lat: 45, Lng: 3}

	driver := NewCovoit(Participant{Name: "ann", IsDriver: true, Capacity: 4, Location: Coordinates{Lat: 48, Lng: 2}}, dest)
	passenger := NewCovoit(Participant{Name: "bob", Capacity: 4, Location: Coordinates{Lat: 47, Lng: 2}}, dest)

	assert.True(t, driver.IsDriver)
	assert.NotNil(t, driver.PassengerNames)
	assert.Equal(t, 3, driver.SeatsLeft())
	assert.Equal(t, dest, driver.Destination)

	assert.False(t, passenger.IsDriver)
	assert.Nil(t, passenger.PassengerNames)
	assert.Zero(t, passenger.Capacity)
	require.NoError(t, driver.Validate())
	require.NoError(t, passenger.Validate())
}

func TestRailLocationFollowsStation(t *testing.T) {
	home := Coordinates{Lat: 47, Lng: 2}
	car := NewCovoit(Participant{Name: "bob", Location: home}, Coordinates{Lat: 45, Lng: 3})

	rail, err := car.ToRail(30)
	require.NoError(t, err)

	_, ok := rail.Location()
	assert.False(t, ok, "rail traveler has no location before a station is assigned")
	assert.Equal(t, home, rail.DepartureLocation())

	station := Station{Code: "87", Name: "Gare", Location: Coordinates{Lat: 46.9, Lng: 2.1}}
	require.NoError(t, rail.AssignStation(station))

	loc, ok := rail.Location()
	require.True(t, ok)
	assert.Equal(t, station.Location, loc)
	assert.Equal(t, home, rail.DepartureLocation())
	require.NoError(t, rail.Validate())
}

func TestDriverCannotBecomeRail(t *testing.T) {
	driver := NewCovoit(Participant{Name: "ann", IsDriver: true, Capacity: 4}, Coordinates{})

	_, err := driver.ToRail(30)
	assert.Error(t, err)
	assert.Error(t, driver.AssignStation(Station{}))
}

func TestValidateCapacity(t *testing.T) {
	driver := NewCovoit(Participant{Name: "ann", IsDriver: true, Capacity: 2}, Coordinates{})
	driver.PassengerNames = []string{"a", "b"}

	assert.Error(t, driver.Validate())
}

func TestCovoitsCloneIsDeep(t *testing.T) {
	cs := Covoits{
		"ann": NewCovoit(Participant{Name: "ann", IsDriver: true, Capacity: 4}, Coordinates{}),
		"bob": NewCovoit(Participant{Name: "bob"}, Coordinates{}),
	}
	cs["ann"].PassengerNames = []string{"bob"}

	cp := cs.Clone()
	cp["ann"].PassengerNames[0] = "zed"

	assert.Equal(t, "bob", cs["ann"].PassengerNames[0])
	assert.Len(t, cs.Drivers(), 1)
	assert.Empty(t, cs.RailUsers())
}

func TestResetRestoresBuiltTraveler(t *testing.T) {
	dest := Coordinates{Lat: 45, Lng: 3}
	home := Coordinates{Lat: 47, Lng: 2}
	built := NewCovoit(Participant{Name: "bob", Location: home}, dest)

	rail, err := built.ToRail(30)
	require.NoError(t, err)
	require.NoError(t, rail.AssignStation(Station{Code: "87", Location: Coordinates{Lat: 46.9, Lng: 2.1}}))
	rail.TripTime, rail.TripCost = 3600, 12

	assert.Equal(t, built, rail.Reset())

	driver := NewCovoit(Participant{Name: "ann", IsDriver: true, Capacity: 3, Location: home}, dest)
	driver.PassengerNames = []string{"bob"}
	driver.Route = &RouteResult{Cost: 10}
	assert.Equal(t, NewCovoit(Participant{Name: "ann", IsDriver: true, Capacity: 3, Location: home}, dest), driver.Reset())
}
