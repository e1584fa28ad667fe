package queue

import "errors"

var (
	ErrRepositoryNil            = errors.New("queue: repository is nil")
	ErrPayloadNil               = errors.New("queue: payload is nil")
	ErrTaskNil                  = errors.New("queue: task is nil")
	ErrTaskExists               = errors.New("queue: task already exists")
	ErrTaskNotFound             = errors.New("queue: task not found")
	ErrTaskNotProcessing        = errors.New("queue: task is not in processing state")
	ErrNoTaskToClaim            = errors.New("queue: no task to claim")
	ErrNoHandlers               = errors.New("queue: no task handler registered")
	ErrHandlerAlreadyRegistered = errors.New("queue: task handler already registered")
	ErrHandlerNotFound          = errors.New("queue: no handler registered for task")
	ErrWorkerAlreadyStarted     = errors.New("queue: worker already started")
	ErrWorkerNotStarted         = errors.New("queue: worker not started")
	ErrWorkerNotRunning         = errors.New("queue: worker is not running")
	ErrStorageAlreadyStarted    = errors.New("queue: storage already started")
	ErrStorageNotStarted        = errors.New("queue: storage not started")
	ErrStorageNotRunning        = errors.New("queue: storage maintenance is not running")
	ErrHealthcheckFailed        = errors.New("queue: healthcheck failed")
	ErrShutdownTimeout          = errors.New("queue: shutdown timeout exceeded")
	ErrDatabasePoolNil          = errors.New("queue: database pool is nil")
	ErrRedisClientNil           = errors.New("queue: redis client is nil")
	ErrCorruptedTask            = errors.New("queue: stored task cannot be decoded")
	ErrLockExpired              = errors.New("queue: lock expired before the task finished")
)
