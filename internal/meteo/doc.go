// Package meteo derives psychrometric quantities and heat-stress indices from
// station observations.
//
// All formulas follow the Campbell Scientific conventions used by the station
// program: temperatures in °C, pressures in kPa, relative humidity in percent.
//
//	esat = 0.1 * (A0 + A1*T + ... + A6*T^6)                saturation vapor pressure
//	ea   = RH * esat / 100                                 vapor pressure
//	Td   = 241.88 * ln(ea/0.61078) / (17.558 - ln(ea/0.61078))
//	ewt  = esat(Tw) - 0.000660 * (1 + 0.00115*Tw) * (T - Tw) * P
//	WBGT = 0.2*BG + 0.7*Tw + 0.1*T
//
// Wet-bulb temperature has no closed form; [SolveWetBulb] runs a damped
// fixed-point iteration on the psychrometric equation starting from the
// dewpoint. The damping factor, iteration cap, tolerance and bound check are
// part of the observable behavior and must not be tuned.
package meteo
