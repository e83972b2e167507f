package album

import (
	"errors"
	"fmt"
)

// NotFoundError signals that the referenced entity does not exist
type NotFoundError string

func (err NotFoundError) Error() string {
	return fmt.Sprintf("no such entity '%s'", string(err))
}

func NotFound(id string) error {
	return NotFoundError(id)
}

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// PhotoAlreadyExistsError signals that a photo with the same payload
// hash is already stored for the location
type PhotoAlreadyExistsError string

func (err PhotoAlreadyExistsError) Error() string {
	return fmt.Sprintf("photo already exists '%s'", string(err))
}

func PhotoAlreadyExists(id string) error {
	return PhotoAlreadyExistsError(id)
}

func IsPhotoAlreadyExists(err error) bool {
	var dup PhotoAlreadyExistsError
	return errors.As(err, &dup)
}
