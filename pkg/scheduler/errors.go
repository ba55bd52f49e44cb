package scheduler

import "github.com/pingcap/errors"

func errNoSuchTask(id int) error {
	return errors.Errorf("scheduler: no such task id %d", id)
}

func errSelfDepend(id int) error {
	return errors.Errorf("scheduler: task %d cannot depend on itself", id)
}
