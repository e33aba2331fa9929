// Package seed populates an empty store with the Mysuru and Bengaluru demo fleet.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/busbuddy/backend/internal/domain"
)

type line struct {
	busNo     string
	routeName string
	from, to  string
	via       []string
	departure string
	lat, lng  float64
	status    domain.BusStatus
}

var mysuru = []line{
	{"MYS101", "City Bus Stand → Chamundi Hill", "City Bus Stand", "Chamundi Hill", []string{"Race Course", "Nanjumalige", "Hill Base"}, "07:00", 12.2987, 76.6575, domain.BusStatusActive},
	{"MYS102", "City Bus Stand → Bannur", "City Bus Stand", "Bannur", []string{"Mullahalli", "Kadakola"}, "07:45", 12.2679, 76.7463, domain.BusStatusActive},
	{"MYS103", "City Bus Stand → Bogadi 2nd Stage", "City Bus Stand", "Bogadi 2nd Stage", []string{"Akashvani", "Kuvempunagar", "Hebbal"}, "08:30", 12.3091, 76.6205, domain.BusStatusActive},
	{"MYS104", "City Bus Stand → Srirampura", "City Bus Stand", "Srirampura", []string{"Vivekananda Circle", "Jayalakshmipuram"}, "09:15", 12.3274, 76.6398, domain.BusStatusActive},
	{"MYS105", "City Bus Stand → KRS", "City Bus Stand", "Krishna Raja Sagar (KRS)", []string{"Metagalli", "Koorgalli", "Brindavan Gardens"}, "10:00", 12.4246, 76.5681, domain.BusStatusIdle},
}

var bengaluru = []line{
	{"BLR13", "Shivajinagar → Banashankari TTMC", "Shivajinagar Bus Station", "Banashankari TTMC", []string{"Richmond Circle", "Lalbagh", "Jayanagar 4th Block"}, "06:45", 12.9374, 77.5868, domain.BusStatusActive},
	{"BLR61", "Majestic → Vijayanagar TTMC", "Kempegowda Bus Station (Majestic)", "Vijayanagar TTMC", []string{"Corporation Circle", "Hosahalli", "Maruthi Mandir"}, "07:20", 12.9716, 77.5545, domain.BusStatusActive},
	{"BLR171", "Majestic → Koramangala 1st Block", "Majestic", "Koramangala 1st Block", []string{"Richmond Circle", "Adugodi", "Forum Mall"}, "08:10", 12.9361, 77.6129, domain.BusStatusActive},
	{"BLR333E", "Majestic → Kadugodi (Whitefield)", "Majestic", "Kadugodi", []string{"Indiranagar", "KR Puram", "Whitefield"}, "09:00", 12.9859, 77.7326, domain.BusStatusMaintenance},
	{"BLR365J", "Majestic → Jigani APC Circle", "Majestic", "Jigani APC Circle", []string{"BTM", "Electronic City", "Bommasandra"}, "09:40", 12.8221, 77.6764, domain.BusStatusActive},
}

// Store is what seeding writes through
type Store interface {
	domain.BusRepository
	domain.RouteRepository
	domain.AnalyticsRepository
	domain.ComplianceRepository
}

// IfEmpty seeds the store unless it already holds buses.
func IfEmpty(ctx context.Context, store Store, now time.Time, rnd *rand.Rand) error {
	buses, err := store.ListBuses(ctx)
	if err != nil {
		return fmt.Errorf("seed: failed to inspect store: %w", err)
	}
	if len(buses) > 0 {
		return nil
	}
	return Load(ctx, store, now, rnd)
}

// Load writes the demo routes, buses, schedules, analytics and compliance records.
func Load(ctx context.Context, store Store, now time.Time, rnd *rand.Rand) error {
	var busIDs []string
	for _, city := range []struct {
		name, class    string
		speedMin       int
		speedSpan      int
		occMin, occMax int
		co2Min, co2Max float64
		lines          []line
	}{
		{"Mysuru", "ORD", 20, 20, 10, 40, 20, 30, mysuru},
		{"Bengaluru", "CITY", 25, 15, 15, 50, 30, 50, bengaluru},
	} {
		for _, l := range city.lines {
			endLat := l.lat + (rnd.Float64()*0.1 - 0.05)
			endLng := l.lng + (rnd.Float64()*0.1 - 0.05)

			route, err := store.CreateRoute(ctx, domain.NewRoute{
				RouteNumber:         l.busNo,
				Name:                l.routeName,
				From:                l.from,
				To:                  l.to,
				ServiceClass:        city.class,
				City:                city.name,
				Stops:               Stops(l.from, l.to, l.via, l.lat, l.lng, endLat, endLng),
				IsEcoRoute:          rnd.Float64() > 0.5,
				EstimatedCO2Savings: rnd.Float64()*city.co2Max + city.co2Min,
			})
			if err != nil {
				return fmt.Errorf("seed: route %s: %w", l.busNo, err)
			}

			lat, lng := l.lat, l.lng
			nb := domain.NewBus{
				BusNumber: l.busNo,
				RouteName: l.routeName,
				Latitude:  &lat,
				Longitude: &lng,
				Status:    l.status,
			}
			if l.status == domain.BusStatusActive {
				nb.CurrentSpeed = float64(rnd.Intn(city.speedSpan) + city.speedMin)
				nb.Occupancy = rnd.Intn(city.occMax) + city.occMin
			}
			bus, err := store.CreateBus(ctx, nb)
			if err != nil {
				return fmt.Errorf("seed: bus %s: %w", l.busNo, err)
			}
			busIDs = append(busIDs, bus.ID)

			for _, dep := range DepartureTimes(l.departure) {
				if _, err := store.CreateSchedule(ctx, domain.NewSchedule{RouteID: route.ID, DepartureTime: dep}); err != nil {
					return fmt.Errorf("seed: schedule %s %s: %w", l.busNo, dep, err)
				}
			}
		}
	}

	if err := seedAnalytics(ctx, store, now, rnd); err != nil {
		return err
	}
	if err := seedCompliance(ctx, store, busIDs, now); err != nil {
		return err
	}

	log.Printf("Seeded %d buses across Mysuru and Bengaluru", len(busIDs))
	return nil
}

// Stops spreads the via points evenly between the two terminals.
func Stops(from, to string, via []string, startLat, startLng, endLat, endLng float64) []domain.Stop {
	stops := []domain.Stop{{Name: from, Lat: startLat, Lng: startLng}}
	total := len(via) + 2
	for i, name := range via {
		ratio := float64(i+1) / float64(total-1)
		stops = append(stops, domain.Stop{
			Name: name,
			Lat:  startLat + (endLat-startLat)*ratio,
			Lng:  startLng + (endLng-startLng)*ratio,
		})
	}
	return append(stops, domain.Stop{Name: to, Lat: endLat, Lng: endLng})
}

// DepartureTimes returns the base departure plus six more, two hours apart.
func DepartureTimes(base string) []string {
	var h, m int
	if _, err := fmt.Sscanf(base, "%d:%d", &h, &m); err != nil {
		return []string{base}
	}
	times := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		times = append(times, fmt.Sprintf("%02d:%02d", (h+i*2)%24, m))
	}
	return times
}

func seedAnalytics(ctx context.Context, store Store, now time.Time, rnd *rand.Rand) error {
	snapshots := make([]domain.NewAnalytics, 0, 8)
	for i := 7; i >= 1; i-- {
		date := now.AddDate(0, 0, -i)
		snapshots = append(snapshots, domain.NewAnalytics{
			Date:           &date,
			TotalCO2Saved:  100 + rnd.Float64()*50,
			TotalFuelSaved: 35 + rnd.Float64()*20,
			TotalTrips:     300 + rnd.Intn(100),
			AvgBusSpeed:    28 + rnd.Float64()*8,
		})
	}
	today := now
	snapshots = append(snapshots, domain.NewAnalytics{
		Date:           &today,
		TotalCO2Saved:  125.6,
		TotalFuelSaved: 45.2,
		TotalTrips:     342,
		AvgBusSpeed:    32.5,
	})

	for _, na := range snapshots {
		_, err := store.CreateAnalytics(ctx, na)
		if errors.Is(err, domain.ErrAnalyticsDayExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed: analytics: %w", err)
		}
	}
	return nil
}

// certificate offsets in days; the last bus deliberately has no record
var certOffsets = [][2]int{
	{120, 200}, {40, 9}, {-3, 90}, {365, 365}, {14, 60},
	{200, 30}, {75, 75}, {5, -1}, {180, 240},
}

func seedCompliance(ctx context.Context, store Store, busIDs []string, now time.Time) error {
	for i, id := range busIDs {
		if i >= len(certOffsets) {
			break
		}
		pollution := now.AddDate(0, 0, certOffsets[i][0])
		fitness := now.AddDate(0, 0, certOffsets[i][1])
		_, err := store.UpsertCompliance(ctx, domain.NewCompliance{
			BusID:               id,
			PollutionCertExpiry: &pollution,
			FitnessCertExpiry:   &fitness,
			Status:              domain.DeriveComplianceStatus(now, &pollution, &fitness),
		})
		if err != nil {
			return fmt.Errorf("seed: compliance: %w", err)
		}
	}
	return nil
}
