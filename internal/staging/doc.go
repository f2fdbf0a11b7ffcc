// Package staging owns the upload directory: ingesting submitted media,
// deleting job files, and the periodic sweeps that reclaim abandoned uploads
// and expired job records.
package staging
