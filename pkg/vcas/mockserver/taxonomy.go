package mockserver

import (
	"fmt"
	"sort"
)

// The fallback taxonomy mirrors the channel layout of the VEPP-2000
// complex: storage ring beam parameters, booster subsystems (position
// monitors, CCD cameras, magnet power supplies, vacuum, thermometry),
// detector counters, cryogenics, and the fixed TEST/DEBUG channels the
// integration tests rely on.

// leaf is one terminal channel in the taxonomy tree.
type leaf struct {
	typ   string
	units string
	descr string
}

// dir is an inner taxonomy node; values are leaf or dir.
type dir map[string]any

func fallbackCatalog(host, port string) *Catalog {
	entries := make(map[string]*Descriptor)
	flatten("", fallbackTaxonomy(), func(name string, l leaf) {
		entries[name] = &Descriptor{
			Type:  l.typ,
			Units: l.units,
			Descr: l.descr,
			Host:  host,
			Port:  port,
		}
	})
	return NewCatalog(entries)
}

// flatten walks the tree depth-first in sorted key order, joining path
// segments with "/".
func flatten(prefix string, d dir, visit func(name string, l leaf)) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "/" + k
		}
		switch v := d[k].(type) {
		case leaf:
			visit(name, v)
		case dir:
			flatten(name, v, visit)
		}
	}
}

func fallbackTaxonomy() dir {
	return dir{
		"VEPP": dir{
			"FZ_tau":   leaf{"rw", "s", "Beam lifetime in VEPP by current monitor"},
			"Energy":   leaf{"ro", "MeV", "Beam energy"},
			"Lifetime": leaf{"ro", "s", "Beam lifetime"},
			"Lum": dir{
				"Lsm":  leaf{"ro", "", "Luminosity"},
				"Lumi": leaf{"ro", "m^-1s^-1", "Integrated luminosity"},
				"smBetas": dir{
					"smBXe": leaf{"ro", "m", "Beam size Xe at IP"},
					"smBXp": leaf{"ro", "m", "Beam size Xp at IP"},
					"smBYe": leaf{"ro", "m", "Beam size Ye at IP"},
					"smBYp": leaf{"ro", "m", "Beam size Yp at IP"},
				},
			},
			"Nu": dir{
				"nuX": leaf{"ro", "", "Tune X"},
				"nuY": leaf{"ro", "", "Tune Y"},
			},
		},
		"BEP": dir{
			"BPM": bpmTaxonomy(),
			"CCD": ccdTaxonomy(),
			"Currents": dir{
				"FZ":       leaf{"rw", "mA", "Booster beam current by current monitor"},
				"PMT":      leaf{"rw", "mA", "Booster beam current"},
				"PMT_int":  leaf{"rw", "mA*h", "Booster current integral"},
				"ePMT":     leaf{"rw", "mA", "Electron current"},
				"pPMT":     leaf{"rw", "mA", "Positron current"},
				"p_tau":    leaf{"ro", "s", "Positron lifetime"},
			},
			"Energy": dir{
				"E_hall": leaf{"ex", "MeV", "Booster energy by Hall sensor"},
				"E_nmr":  leaf{"ex", "MeV", "Booster energy by NMR"},
				"E_set":  leaf{"ex", "MeV", "Booster energy from source current"},
			},
			"Field": dir{
				"Hall_0": dir{"Gs": leaf{"rw", "Gs", "Hall 0"}, "mV": leaf{"rw", "mV", "Hall 0 voltage"}},
				"Hall_1": dir{"Gs": leaf{"rw", "Gs", "Hall 1"}, "mV": leaf{"rw", "mV", "Hall 1 voltage"}},
				"Hall_2": dir{"Gs": leaf{"rw", "Gs", "Hall 2"}, "mV": leaf{"rw", "mV", "Hall 2 voltage"}},
			},
			"Injection": dir{
				"State": leaf{"rw", "", "Booster injection state: SUSPEND, ON"},
			},
			"PS": dir{
				"BIT1":   leaf{"rw", "A", "Main bus setpoint by BIT1"},
				"BIT2":   leaf{"rw", "A", "Main bus setpoint by BIT2"},
				"SetCur": leaf{"rw", "A", "Main bus current setpoint"},
				"Thermo": dir{
					"Left":    leaf{"rw", "C", "Thermal sensor, left link"},
					"Right":   leaf{"rw", "C", "Thermal sensor, right link"},
					"Control": leaf{"rw", "C", "Thermal sensor, control"},
				},
			},
			"RF": dir{
				"Fase":  leaf{"rw", "", ""},
				"Freq":  leaf{"rw", "kHz", ""},
				"I":     leaf{"rw", "A", ""},
				"Separ": leaf{"rw", "", ""},
				"U":     leaf{"rw", "kV", ""},
			},
			"State":  leaf{"rw", "Text", "Booster state"},
			"Thermo": thermoTaxonomy(),
			"UM":     umTaxonomy(),
			"Vacuum": vacuumTaxonomy(),
		},
		"CMD": dir{
			"DCR1":      leaf{"rw", "", "Coincidence counter 1"},
			"DCR2":      leaf{"rw", "", "Coincidence counter 2"},
			"Events":    leaf{"rw", "", "Event count"},
			"RunNumber": leaf{"rw", "", "Run number"},
			"RunState":  leaf{"rw", "", "Run state"},
			"Trigger":   leaf{"rw", "", "Trigger"},
		},
		"Cryo": dir{
			"Level": dir{
				"Cr-1": dir{"LHe": leaf{"rw", "", "Liquid helium level"}, "LN": leaf{"rw", "", "Liquid nitrogen level"}},
				"Cr-2": dir{"LHe": leaf{"rw", "", "Liquid helium level"}, "LN": leaf{"rw", "", "Liquid nitrogen level"}},
			},
			"Thermo": dir{
				"Cr-1": cryoThermoTaxonomy(),
				"Cr-2": cryoThermoTaxonomy(),
			},
		},
		"Diagnostics": dir{
			"BPM": dir{
				"Position_X": leaf{"rw", "mm", "Beam position X"},
				"Position_Y": leaf{"rw", "mm", "Beam position Y"},
				"Intensity":  leaf{"ro", "counts", "Beam intensity"},
			},
			"FCT": dir{
				"Frequency": leaf{"rw", "MHz", "Fast current transformer frequency"},
				"Phase":     leaf{"rw", "deg", "Fast current transformer phase"},
			},
			"Profile": dir{
				"Sigma_X": leaf{"ro", "mm", "Beam size X"},
				"Sigma_Y": leaf{"ro", "mm", "Beam size Y"},
			},
		},
		"Magnets": dir{
			"Quadrupoles": dir{
				"Q1_PS": leaf{"rw", "A", "Quadrupole Q1 power supply"},
				"Q2_PS": leaf{"rw", "A", "Quadrupole Q2 power supply"},
				"Q3_PS": leaf{"rw", "A", "Quadrupole Q3 power supply"},
			},
			"Dipoles": dir{
				"D1_Current": leaf{"rw", "A", "Dipole D1 current"},
				"D2_Current": leaf{"rw", "A", "Dipole D2 current"},
			},
		},
		"RF": dir{
			"Generator": dir{
				"Amplitude": leaf{"rw", "MV", "Generator amplitude"},
				"Phase":     leaf{"rw", "deg", "Generator phase"},
				"Frequency": leaf{"rw", "MHz", "Generator frequency"},
			},
			"Cavity": dir{
				"Voltage":     leaf{"ro", "MV", "Cavity voltage"},
				"Temperature": leaf{"ro", "C", "Cavity temperature"},
			},
		},
		"Vacuum": dir{
			"Pressure": dir{
				"Section_1": leaf{"ro", "mbar", "Pressure, section 1"},
				"Section_2": leaf{"ro", "mbar", "Pressure, section 2"},
				"Section_3": leaf{"ro", "mbar", "Pressure, section 3"},
			},
			"Pumps": dir{
				"Turbo_1": leaf{"rw", "rpm", "Turbopump 1 speed"},
				"Turbo_2": leaf{"rw", "rpm", "Turbopump 2 speed"},
			},
		},
		"Temperature": dir{
			"Cooling": dir{
				"Water_In":  leaf{"ro", "C", "Cooling water inlet temperature"},
				"Water_Out": leaf{"ro", "C", "Cooling water outlet temperature"},
				"Flow":      leaf{"ro", "l/min", "Cooling water flow"},
			},
			"Magnets": dir{
				"Quad_1":   leaf{"ro", "C", "Quadrupole 1 temperature"},
				"Dipole_1": leaf{"ro", "C", "Dipole 1 temperature"},
			},
		},
		"TEST": dir{
			"SimpleChannel":    leaf{"rw", "V", "Simple test channel"},
			"ReadOnlyChannel":  leaf{"ro", "Hz", "Read-only test channel"},
			"ExclusiveChannel": leaf{"ex", "", "Exclusive test channel"},
		},
		"DEBUG": dir{
			"Counter": leaf{"rw", "count", "Debug counter"},
			"Timer":   leaf{"ro", "ms", "System timer"},
			"Status":  leaf{"ro", "enum", "System status"},
		},
	}
}

// bpmTaxonomy generates the twelve beam position monitors.
func bpmTaxonomy() dir {
	d := dir{}
	for i := 1; i <= 12; i++ {
		d[fmt.Sprintf("%02d", i)] = dir{
			"int": leaf{"rw", "mA", "Position monitor intensity"},
			"x":   leaf{"rw", "mm", "Position monitor x"},
			"z":   leaf{"rw", "mm", "Position monitor z"},
		}
	}
	return d
}

// ccdTaxonomy generates the CCD camera stations.
func ccdTaxonomy() dir {
	d := dir{}
	for _, cam := range []string{"B3", "B5", "B6", "B7", "B8", "B9", "B10", "B11"} {
		d[cam] = dir{
			"ampl":    leaf{"ex", "", "Amplitude"},
			"maxL":    leaf{"rw", "ADC count", ""},
			"phi":     leaf{"rw", "", "Beam tilt angle at sensor"},
			"sigma_x": leaf{"rw", "mm", "Horizontal beam size at sensor"},
			"sigma_z": leaf{"rw", "mm", "Vertical beam size at sensor"},
			"x":       leaf{"rw", "mm", "x coordinate at sensor"},
			"z":       leaf{"rw", "mm", "z coordinate at sensor"},
		}
	}
	return d
}

// thermoTaxonomy generates the booster thermal sensors. The legacy
// names use "." inside the last segment (B1.1), exercising the dotted
// path fallback in clients.
func thermoTaxonomy() dir {
	d := dir{}
	for i := 1; i <= 12; i++ {
		d[fmt.Sprintf("B%d.1", i)] = leaf{"rw", "C", "Temperature"}
		d[fmt.Sprintf("B%d.2", i)] = leaf{"rw", "C", "Temperature"}
	}
	return d
}

// umTaxonomy generates the corrector magnet families.
func umTaxonomy() dir {
	d := dir{}
	for _, family := range []string{"QX", "QZ", "SX", "SZ"} {
		section := dir{}
		for i := 1; i <= 12; i++ {
			section[fmt.Sprintf("%s%d", family, i)] = dir{
				"Cur":    leaf{"rw", "A", "Current"},
				"SetCur": leaf{"rw", "A", "Current setpoint"},
				"Vol":    leaf{"rw", "V", "Voltage"},
			}
		}
		d[family] = section
	}
	return d
}

// vacuumTaxonomy generates the booster vacuum gauges.
func vacuumTaxonomy() dir {
	d := dir{}
	for _, section := range []string{"1M1-H1", "1M1-H2", "2M1-H1", "2M1-H2", "3M1-H1", "3M1-H2", "4M1-H1", "4M1-H2", "Center"} {
		d["MRN/"+section] = dir{
			"c": leaf{"rw", "", "Collector current"},
			"u": leaf{"rw", "", "Voltage"},
		}
	}
	for _, section := range []string{"1M1-L", "2M1-L", "3M1-L", "4M1-L", "Res-L", "Vpusk-L"} {
		d["PMM/"+section] = leaf{"rw", "", "Pressure"}
	}
	return d
}

// cryoThermoTaxonomy generates one cryostat's thermal sensor block.
func cryoThermoTaxonomy() dir {
	d := dir{}
	for i := 0; i < 6; i++ {
		d[fmt.Sprintf("T%d", i)] = leaf{"rw", "K", fmt.Sprintf("Cryostat temperature %d", i)}
	}
	return d
}
