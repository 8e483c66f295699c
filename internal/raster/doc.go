// Package raster turns spike event data into a canonical raster.
//
// Raw input arrives in one of four shapes (Mapping, Tuple, FileRef, Absent).
// Normalize resolves the concrete shapes into a NormalizedRaster: parallel
// time/index sequences ordered by cell, population sizes and labels. FileRef
// and Absent inputs are resolved first by a Normalizer through its injected
// FileLoader and RasterSource collaborators.
//
// The package imports nothing internal. Rendering, file formats and the
// simulation store live in other packages and depend on raster, not the
// other way around.
//
// Normalization is a pure function of its inputs plus the injected
// AttributeLookup. There is no shared state; every call is independent.
package raster
