package repository

import "errors"

var ErrNotFound = errors.New("задача не найдена")
var ErrAlreadyCompleted = errors.New("задача уже выполнена")
