// Package viz draws towers and simulations for the terminal and for files.
//
// Drawing happens on a [Canvas] of braille cells, each holding 2x4
// sub-pixels. On top of it:
//
//   - [TowerView]: flat side view of a generated tower
//   - [SceneView]: wireframe projection of posed boxes through a scene camera
//   - [Canvas.Rasterize] and [SaveGIF]: frames to an animated GIF
//   - [CalibrationASCII], [CalibrationPNG], [CalibrationHTML]: staircase history
//   - [HeightsASCII]: block heights over a trajectory
package viz
