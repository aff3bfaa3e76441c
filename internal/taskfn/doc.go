// Package taskfn — реестр функций, которые выполняют задачи.
//
// Задача в БД хранит только function_name. Executor планировщика
// разрешает это имя через Registry в момент выполнения:
//
//	reg := taskfn.NewBuiltinRegistry(taskfn.Simulation{
//	    MinDuration: 2 * time.Minute,
//	    MaxDuration: 3 * time.Minute,
//	}, logger)
//
//	fn, err := reg.Get(task.FunctionName)
//	if errors.Is(err, taskfn.ErrFunctionNotFound) {
//	    // записывается в историю как failed
//	}
//
// Встроенные функции (processData, cleanCache, generateReports,
// analyzeLogs, manageBackups) соответствуют seed-задачам из миграций
// и имитируют многоэтапную работу.
package taskfn
