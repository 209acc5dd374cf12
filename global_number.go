package main

// Distance between a sensor and the module surface it samples, m
func get_sensor_surface_offset() float64 {
	return 0.01
}

// Height of the ground scan above grade, m
func get_ground_scan_height() float64 {
	return 0.05
}

// Default panel thickness, m
func get_default_panel_thickness() float64 {
	return 0.02
}

// Tilt window in which a collector is treated as vertical, deg
func get_near_vertical_tilt() (float64, float64) {
	return 85.0, 95.0
}

// Relative tolerance for pitch / gcr agreement, -
func get_gcr_tolerance() float64 {
	return 1e-6
}
