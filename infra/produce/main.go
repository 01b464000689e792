package produce

import amqp "github.com/rabbitmq/amqp091-go"

type Produce struct {
	JobService *JobEventService
}

var produceInstance *Produce

func InitProduce(channel *amqp.Channel) *Produce {
	if produceInstance != nil {
		return produceInstance
	}

	jobService := InitJobEventService(channel)
	if jobService == nil {
		panic("Failed to initialize Job event service")
	}

	produceInstance = &Produce{
		JobService: jobService,
	}

	return produceInstance
}

func GetProduce() *Produce {
	if produceInstance == nil {
		panic("Produce not initialized. Call InitProduce() first.")
	}
	return produceInstance
}
