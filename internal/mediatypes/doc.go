// Package mediatypes holds the MIME and extension tables shared by the
// converter's packages. It has no dependencies so anything can import it.
//
//	mime := mediatypes.MimeFromPath("photo.JPG") // "image/jpeg"
//	if mediatypes.UploadImageTypes[mime] {
//	    // hand to the pipeline
//	}
package mediatypes
