package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"stockhub/internal/protocol"
)

// GetEmployeeList answers SUCCESS<n> then <login;last login> per employee,
// the last login being empty for employees who never logged in.
func (s *Store) GetEmployeeList(ctx context.Context, actor string, msg *protocol.Message) *protocol.Message {
	var employees []Employee
	if err := s.db.WithContext(ctx).Order("login").Find(&employees).Error; err != nil {
		return s.fail("get_employee_list", err)
	}

	reply := protocol.NewSuccess(strconv.Itoa(len(employees)))
	for _, e := range employees {
		last := ""
		if e.LastLogin != nil {
			last = e.LastLogin.UTC().Format(time.RFC3339)
		}
		if err := reply.AppendFields(e.Login, last); err != nil {
			return s.fail("get_employee_list", err)
		}
	}
	return reply
}

// AddEmployee expects <login><password> and answers SUCCESS<id>.
func (s *Store) AddEmployee(ctx context.Context, actor string, msg *protocol.Message) *protocol.Message {
	login, password := msg.Option(0), msg.Option(1)
	if err := validLogin(login); err != nil {
		return s.fail("add_employee", err)
	}
	if password == "" {
		return s.fail("add_employee", rejectf("password is not valid"))
	}

	hash, err := HashPassword(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return s.fail("add_employee", rejectf("password is not valid"))
	}
	if err != nil {
		return s.fail("add_employee", err)
	}

	employee := Employee{Login: login, PasswordHash: hash}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Employee{}).Where("login = ?", login).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return rejectf("an employee with this login already exists")
		}
		if err := tx.Create(&employee).Error; err != nil {
			if isUniqueViolation(err) {
				return rejectf("an employee with this login already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return s.fail("add_employee", err)
	}

	s.logger.Info("employee_added",
		"actor", actor,
		"login", login,
		"employee_id", employee.ID,
	)
	return protocol.NewSuccess(strconv.FormatUint(uint64(employee.ID), 10))
}

// RemoveEmployee expects <login>. An open session of that employee is not
// closed, it only fails its next login.
func (s *Store) RemoveEmployee(ctx context.Context, actor string, msg *protocol.Message) *protocol.Message {
	login := msg.Option(0)
	res := s.db.WithContext(ctx).Where("login = ?", login).Delete(&Employee{})
	if res.Error != nil {
		return s.fail("remove_employee", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.fail("remove_employee", errEmployeeNotFound)
	}

	s.logger.Info("employee_removed", "actor", actor, "login", login)
	return protocol.NewSuccess()
}
