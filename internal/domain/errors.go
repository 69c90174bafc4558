package domain

import "errors"

// ErrStorageUnavailable возвращается, если хранилище недоступно.
// Повторные попытки внутри сервиса не выполняются.
var ErrStorageUnavailable = errors.New("хранилище недоступно")

// ErrInvalidArgument возвращается при некорректных входных данных
// до обращения к хранилищу.
var ErrInvalidArgument = errors.New("некорректный аргумент")

// ErrNotFound возвращается, если запрошенная запись отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// ErrUsernameTaken возвращается, если имя пользователя уже занято.
var ErrUsernameTaken = errors.New("имя пользователя уже занято")
