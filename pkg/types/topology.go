package types

// Device is a single inverter/battery unit attached to a station.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SerialNumber string `json:"serialNumber"`
	DeviceType   string `json:"deviceType"`
	ModelType    string `json:"modelType"`
}

// Station is a site as the vendor portal lists it, with its devices in the
// order the portal returned them.
type Station struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Devices []Device `json:"devices"`
}

// Topology is the cached set of stations and devices for an account.
type Topology struct {
	Stations []Station `json:"stations"`
}

// Station returns the station with the given id.
func (t Topology) Station(id string) (Station, bool) {
	for _, s := range t.Stations {
		if s.ID == id {
			return s, true
		}
	}
	return Station{}, false
}

// StationByName returns the first station with the given name.
func (t Topology) StationByName(name string) (Station, bool) {
	for _, s := range t.Stations {
		if s.Name == name {
			return s, true
		}
	}
	return Station{}, false
}

// Device returns the device with the given id along with its station.
func (t Topology) Device(id string) (Station, Device, bool) {
	for _, s := range t.Stations {
		for _, d := range s.Devices {
			if d.ID == id {
				return s, d, true
			}
		}
	}
	return Station{}, Device{}, false
}

// Clone returns a deep copy so callers can't mutate the cache.
func (t Topology) Clone() Topology {
	out := Topology{Stations: make([]Station, len(t.Stations))}
	for i, s := range t.Stations {
		s.Devices = append([]Device(nil), s.Devices...)
		out.Stations[i] = s
	}
	return out
}
