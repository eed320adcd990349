package expand

import "regexp"

// Concept maps one domain term to its synonyms, related variable names,
// and contextual qualifiers used to synthesize phrase expansions.
type Concept struct {
	Synonyms []string
	Related  []string
	Contexts []string
}

// TemporalPattern tags queries that hint at a temporal intent.
type TemporalPattern struct {
	Pattern *regexp.Regexp
	Hint    string
}

// Lexicon is the static domain vocabulary the expander matches against.
// It is loaded once and read-only afterwards; a single instance is safe
// to share across concurrent queries.
type Lexicon struct {
	Concepts  map[string]Concept
	Locations map[string][]string
	Temporal  []TemporalPattern
}

// DefaultLexicon returns the built-in oceanographic vocabulary covering
// physical, chemical, biological, and geological concepts plus a marine
// gazetteer.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Concepts: map[string]Concept{
			"temperature": {
				Synonyms: []string{"temp", "thermal", "thermocline", "heat", "warming", "cooling", "sst", "potential_temperature", "conservative_temperature"},
				Related:  []string{"sea_surface_temperature", "bottom_temperature", "air_temperature", "potential_temperature", "heat_flux", "heat_content", "thermal_gradient", "ocean_heat"},
				Contexts: []string{"surface", "subsurface", "deep", "air-sea interface", "mixed layer", "seasonal", "anomaly", "climatology", "profile"},
			},
			"salinity": {
				Synonyms: []string{"salt", "saline", "halocline", "saltiness", "conductivity", "sss", "practical_salinity", "absolute_salinity"},
				Related:  []string{"sea_surface_salinity", "practical_salinity", "absolute_salinity", "psu", "pss-78", "density", "stratification", "freshwater", "evaporation", "precipitation"},
				Contexts: []string{"surface", "deep", "estuary", "freshwater", "brine", "profile", "anomaly", "climatology"},
			},
			"current": {
				Synonyms: []string{"flow", "velocity", "circulation", "drift", "stream", "advection", "transport"},
				Related:  []string{"ocean_current", "geostrophic", "ekman", "tidal", "surface_current", "deep_current", "eddy", "gyre", "upwelling", "downwelling", "gulf_stream", "kuroshio", "thermohaline"},
				Contexts: []string{"surface", "subsurface", "geostrophic", "ageostrophic", "tidal", "wind-driven", "zonal", "meridional", "eastward", "northward", "barotropic", "baroclinic"},
			},
			"wind": {
				Synonyms: []string{"breeze", "gale", "storm", "air_movement", "atmospheric_forcing", "wind_stress"},
				Related:  []string{"wind_speed", "wind_direction", "u_wind", "v_wind", "wind_stress", "scatterometer", "wind_curl", "wind_divergence", "zonal_wind", "meridional_wind"},
				Contexts: []string{"surface", "10m", "zonal", "meridional", "stress", "forcing", "u-component", "v-component", "speed", "direction"},
			},
			"wave": {
				Synonyms: []string{"swell", "sea_state", "whitecap", "surf", "breaker", "significant_wave_height", "swh"},
				Related:  []string{"significant_wave_height", "wave_period", "wave_direction", "wave_spectrum", "Hs", "Tp", "peak_period", "mean_period", "wave_energy"},
				Contexts: []string{"surface", "deep_water", "shallow_water", "wind_wave", "swell", "breaking", "significant", "maximum", "mean", "spectrum"},
			},
			"chlorophyll": {
				Synonyms: []string{"chl", "phytoplankton", "algae", "primary_production", "biomass", "chl_a", "chlorophyll_a"},
				Related:  []string{"chlorophyll_a", "chl_a", "ocean_color", "MODIS", "SeaWiFS", "VIIRS", "productivity", "bloom", "photosynthesis", "npp", "gpp", "euphotic_zone"},
				Contexts: []string{"surface", "euphotic", "bloom", "seasonal", "satellite", "in-situ", "concentration", "anomaly"},
			},
			"ice": {
				Synonyms: []string{"sea_ice", "glacial", "frozen", "ice_sheet", "iceberg", "ice_concentration", "ice_extent"},
				Related:  []string{"ice_concentration", "ice_thickness", "ice_extent", "ice_age", "albedo", "ice_drift", "polynya", "lead", "ice_shelf", "glacier"},
				Contexts: []string{"Arctic", "Antarctic", "seasonal", "multi-year", "first-year", "marginal", "extent", "concentration", "melt", "formation"},
			},
			"carbon": {
				Synonyms: []string{"co2", "carbon_dioxide", "carbonate", "bicarbonate", "acidification", "dic", "pco2"},
				Related:  []string{"dissolved_inorganic_carbon", "total_alkalinity", "pCO2", "ocean_acidification", "carbon_flux", "carbon_sequestration", "carbonate_system", "pH"},
				Contexts: []string{"surface", "deep", "anthropogenic", "natural", "air-sea", "flux", "uptake", "storage"},
			},
			"fisheries": {
				Synonyms: []string{"fishing", "catch", "landings", "bycatch", "trawl", "longline", "gillnet", "seine", "fish_stock"},
				Related:  []string{"cpue", "effort", "haul", "set", "gear_type", "vessel", "specimen", "length", "weight", "species_code", "abundance", "spawning_biomass"},
				Contexts: []string{"commercial", "survey", "groundfish", "pelagic", "nearshore", "offshore", "observer", "logbook", "stock_assessment"},
			},
			"habitat": {
				Synonyms: []string{"substrate", "benthic", "reef", "shelf", "slope", "nursery", "ecosystem", "marine_habitat"},
				Related:  []string{"bathymetry", "slope", "rugosity", "sediment", "temperature", "salinity", "oxygen", "chlorophyll", "coral_reef", "seagrass", "mangrove", "essential_fish_habitat"},
				Contexts: []string{"shelf", "slope", "canyon", "coastal", "estuary", "deep_sea", "pelagic", "protected_area"},
			},
			"nutrient": {
				Synonyms: []string{"nitrate", "phosphate", "silicate", "nitrogen", "phosphorus", "nutrients", "no3", "po4", "sio4"},
				Related:  []string{"nitrate", "phosphate", "silicate", "nitrogen", "phosphorus", "ammonia", "nitrite", "eutrophication", "nutrient_limitation", "upwelling", "nutrient_flux"},
				Contexts: []string{"surface", "subsurface", "concentration", "profile", "limitation", "ratio", "stoichiometry", "deep"},
			},
			"oxygen": {
				Synonyms: []string{"dissolved_oxygen", "do", "o2", "oxygen_concentration", "hypoxia", "dissolved_o2"},
				Related:  []string{"dissolved_oxygen", "hypoxia", "anoxia", "oxygen_minimum_zone", "omz", "oxygen_saturation", "dead_zone", "respiration", "ventilation"},
				Contexts: []string{"surface", "subsurface", "bottom", "saturation", "deficit", "minimum zone", "profile"},
			},
			"ph": {
				Synonyms: []string{"acidity", "ocean_acidity", "hydrogen_ion", "ph_level", "alkalinity"},
				Related:  []string{"acidification", "alkalinity", "carbon_dioxide", "carbonate_saturation", "aragonite", "calcite", "total_alkalinity"},
				Contexts: []string{"surface", "subsurface", "anomaly", "trend", "acidification"},
			},
			"density": {
				Synonyms: []string{"sigma_t", "potential_density", "in_situ_density", "seawater_density", "rho", "density_anomaly"},
				Related:  []string{"stratification", "buoyancy", "mixed_layer", "pycnocline", "density_gradient", "stability", "sigma_theta"},
				Contexts: []string{"surface", "subsurface", "profile", "anomaly", "stratification"},
			},
			"mixedlayer": {
				Synonyms: []string{"mixed_layer_depth", "mld", "mixing_depth", "surface_mixed_layer", "boundary_layer"},
				Related:  []string{"stratification", "thermocline", "halocline", "pycnocline", "mixing", "entrainment", "detrainment"},
				Contexts: []string{"depth", "seasonal", "diurnal", "climatology"},
			},
			"turbidity": {
				Synonyms: []string{"suspended_sediment", "total_suspended_matter", "tsm", "water_clarity", "transparency", "secchi_depth"},
				Related:  []string{"sediment", "runoff", "erosion", "light_attenuation", "particulate_matter", "turbid_water", "suspended_particulate_matter"},
				Contexts: []string{"surface", "coastal", "river_plume", "nearshore"},
			},
			"bathymetry": {
				Synonyms: []string{"depth", "ocean_depth", "seafloor", "topography", "bottom", "seafloor_depth", "bathymetric"},
				Related:  []string{"seamount", "ridge", "trench", "continental_shelf", "slope", "abyssal_plain", "submarine_canyon", "topography"},
				Contexts: []string{"seafloor", "bottom", "depth", "elevation", "contour"},
			},
			"tide": {
				Synonyms: []string{"tidal", "sea_level", "water_level", "tidal_height", "tide_gauge", "tidal_elevation"},
				Related:  []string{"surge", "tidal_current", "tidal_range", "spring_tide", "neap_tide", "astronomical_tide", "storm_surge", "harmonic"},
				Contexts: []string{"prediction", "observation", "residual", "anomaly", "harmonic"},
			},
			"altimetry": {
				Synonyms: []string{"sea_surface_height", "ssh", "sea_level_anomaly", "sla", "sea_surface_anomaly", "satellite_altimetry"},
				Related:  []string{"satellite_altimetry", "jason", "topex", "geostrophic_current", "eddy", "mesoscale", "absolute_dynamic_topography"},
				Contexts: []string{"anomaly", "absolute", "gridded", "along-track"},
			},
			"precipitation": {
				Synonyms: []string{"rainfall", "rain", "precipitation_rate", "precip", "rainfall_rate"},
				Related:  []string{"evaporation", "freshwater_flux", "salinity", "river_discharge", "runoff"},
				Contexts: []string{"rate", "accumulation", "anomaly", "climatology"},
			},
			"evaporation": {
				Synonyms: []string{"evap", "evapotranspiration", "surface_evaporation", "evaporation_rate"},
				Related:  []string{"precipitation", "freshwater_flux", "salinity", "latent_heat", "humidity"},
				Contexts: []string{"rate", "flux", "net", "climatology"},
			},
			"radiation": {
				Synonyms: []string{"solar_radiation", "shortwave", "longwave", "net_radiation", "insolation", "par"},
				Related:  []string{"heat_flux", "albedo", "cloud_cover", "photosynthetically_active_radiation", "par", "irradiance"},
				Contexts: []string{"surface", "downwelling", "upwelling", "net", "shortwave", "longwave"},
			},
			"pressure": {
				Synonyms: []string{"sea_level_pressure", "slp", "atmospheric_pressure", "barometric_pressure", "surface_pressure"},
				Related:  []string{"wind", "storm", "high_pressure", "low_pressure", "pressure_gradient"},
				Contexts: []string{"sea level", "surface", "anomaly", "gradient"},
			},
			"zooplankton": {
				Synonyms: []string{"zooplankton_biomass", "copepod", "krill", "zooplankton_abundance", "zooplankton_community"},
				Related:  []string{"phytoplankton", "food_web", "grazing", "marine_ecosystem", "secondary_production", "biomass"},
				Contexts: []string{"biomass", "abundance", "size class", "community"},
			},
			"soundspeed": {
				Synonyms: []string{"sound_velocity", "acoustic_velocity", "speed_of_sound", "sound_speed_profile"},
				Related:  []string{"sonar", "acoustic", "temperature", "salinity", "pressure", "sound_channel", "sofar"},
				Contexts: []string{"profile", "surface", "sound channel", "sofar"},
			},
			"satellite": {
				Synonyms: []string{"remote_sensing", "satellite_data", "earth_observation", "space_based"},
				Related:  []string{"modis", "viirs", "sentinel", "landsat", "aqua", "terra", "altimetry", "ocean_color", "sar"},
				Contexts: []string{"l2", "l3", "level-2", "level-3", "daily", "monthly", "composite"},
			},
			"insitu": {
				Synonyms: []string{"in_situ", "in-situ", "observation", "measurement", "field_data"},
				Related:  []string{"ctd", "adcp", "buoy", "glider", "argo", "mooring", "ship", "profile"},
				Contexts: []string{"profile", "time_series", "survey", "cruise", "station"},
			},
			"model": {
				Synonyms: []string{"numerical_model", "forecast", "simulation", "reanalysis", "hindcast"},
				Related:  []string{"hycom", "roms", "nemo", "mom", "forecast", "nowcast", "reanalysis", "operational"},
				Contexts: []string{"forecast", "hindcast", "nowcast", "reanalysis", "operational", "research"},
			},
		},
		Locations: map[string][]string{
			"california":     {"california current", "west coast", "pacific coast", "california coastal", "ccs", "southern california bight", "monterey bay"},
			"gulf of mexico": {"gom", "gulf", "gulf coast", "texas", "louisiana", "florida", "gulf of mexico basin"},
			"atlantic":       {"north atlantic", "south atlantic", "atlantic ocean", "nadw", "aaiw", "atlantic basin"},
			"north atlantic": {"na", "subpolar gyre", "gulf stream", "sargasso", "iceland basin", "labrador sea", "north atlantic drift"},
			"south atlantic": {"sa", "south atlantic ocean", "brazil current", "benguela current", "south atlantic gyre"},
			"pacific":        {"north pacific", "south pacific", "pacific ocean", "kuroshio", "california current", "pacific basin"},
			"north pacific":  {"np", "north pacific ocean", "kuroshio", "oyashio", "alaska gyre", "north pacific gyre"},
			"south pacific":  {"sp", "south pacific ocean", "east australian current", "humboldt current", "south pacific gyre"},
			"arctic":         {"arctic ocean", "beaufort", "chukchi", "barents", "greenland sea", "polar", "beaufort gyre", "transpolar drift"},
			"antarctic":      {"southern ocean", "ross sea", "weddell sea", "circumpolar", "polar", "antarctic circumpolar current", "acc"},
			"mediterranean":  {"med", "mediterranean sea", "aegean", "adriatic", "tyrrhenian", "balearic", "ligurian", "ionian"},
			"caribbean":      {"caribbean sea", "antilles", "tropical atlantic", "greater antilles", "lesser antilles"},
			"north sea":      {"north sea", "northern european shelf", "dogger bank"},
			"baltic":         {"baltic sea", "baltic", "bothnian sea", "gulf of finland", "gulf of riga"},
			"bering":         {"bering sea", "bering strait", "aleutian basin"},
			"barents":        {"barents sea", "barents", "norwegian sea"},
			"black sea":      {"black sea", "sea of azov"},
			"red sea":        {"red sea", "gulf of aqaba", "gulf of suez"},
			"east china":     {"east china sea", "yellow sea", "bohai sea"},
			"south china":    {"south china sea", "scs", "gulf of thailand", "gulf of tonkin"},
			"indian":         {"indian ocean", "arabian sea", "bay of bengal", "andaman sea"},
			"labrador":       {"labrador sea", "davis strait", "baffin bay"},
			"greenland":      {"greenland sea", "denmark strait"},
			"norwegian":      {"norwegian sea", "norwegian coast"},
			"beaufort":       {"beaufort sea", "beaufort gyre", "mackenzie shelf"},
			"chukchi":        {"chukchi sea", "chukchi shelf"},
			"ross":           {"ross sea", "ross ice shelf", "ross gyre"},
			"weddell":        {"weddell sea", "weddell gyre"},
			"coral":          {"coral sea", "great barrier reef"},
			"tasman":         {"tasman sea", "tasman basin"},
			"benguela":       {"benguela current", "benguela upwelling system"},
			"agulhas":        {"agulhas current", "agulhas retroflection"},
			"kuroshio":       {"kuroshio current", "kuroshio extension"},
			"gulf stream":    {"gulf stream", "gulf stream extension", "north atlantic current"},
		},
		Temporal: []TemporalPattern{
			{Pattern: regexp.MustCompile(`seasonal|monthly|annual|yearly`), Hint: "temporal_coverage"},
			{Pattern: regexp.MustCompile(`trend|change|warming|cooling`), Hint: "time_series"},
			{Pattern: regexp.MustCompile(`recent|latest|current|real.?time`), Hint: "recent_data"},
			{Pattern: regexp.MustCompile(`historical|archive|long.?term|climate`), Hint: "historical_data"},
			{Pattern: regexp.MustCompile(`forecast|prediction|model`), Hint: "forecast_data"},
		},
	}
}
