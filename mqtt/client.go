// Package mqtt connects the goal controller to the outside world over an MQTT broker. It
// carries velocity commands and telemetry out, and goals, cancellations, frame updates,
// obstacle points and parameter updates in. Every payload is JSON.
package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/movebasic/action"
	"go.viam.com/movebasic/collision"
	"go.viam.com/movebasic/config"
	"go.viam.com/movebasic/logging"
	"go.viam.com/movebasic/movebasic"
	"go.viam.com/movebasic/spatialmath"
)

// Topic names, relative to the configured prefix.
const (
	TopicCmdVel           = "cmd_vel"
	TopicPath             = "plan"
	TopicObstacleDistance = "obstacle_distance"
	TopicLateralError     = "lateral_error"
	TopicGoalStatus       = "move_base/status"
	TopicGoal             = "move_base/goal"
	TopicSimpleGoal       = "move_base_simple/goal"
	TopicCancel           = "move_base/cancel"
	TopicTransforms       = "tf"
	TopicObstaclePoints   = "obstacle_points"
	TopicParameters       = "move_base/parameters"
)

const (
	qosTelemetry byte = 0
	qosReliable  byte = 1
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("MQTT client is not connected")

// Options configure the broker connection.
type Options struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Goals accepts goals and cancellations.
type Goals interface {
	Submit(goal movebasic.Goal) (uuid.UUID, error)
	Cancel(id uuid.UUID) error
	CancelAll()
}

// Transforms accepts frame updates.
type Transforms interface {
	SetTransform(child, parent string, childInParent spatialmath.Pose) error
	SetStaticTransform(child, parent string, childInParent spatialmath.Pose) error
}

// Points accepts obstacle points in the base frame.
type Points interface {
	SetPoints(points []r3.Vector)
}

// Parameters accepts partial parameter updates.
type Parameters interface {
	Merge(attrs map[string]interface{}) (config.Config, error)
}

// Handlers receive inbound messages. A nil handler leaves its topic unsubscribed.
type Handlers struct {
	Goals      Goals
	Transforms Transforms
	Points     Points
	Parameters Parameters
}

// Client is the MQTT transport. It implements base.Base, movebasic.PathPublisher,
// movebasic.LateralErrorPublisher, collision.Publisher and action.StatusPublisher.
type Client struct {
	client   paho.Client
	prefix   string
	handlers Handlers
	logger   logging.Logger
}

// NewClient returns an unconnected client.
func NewClient(opts Options, logger logging.Logger) *Client {
	c := &Client{prefix: strings.TrimSuffix(opts.TopicPrefix, "/"), logger: logger}
	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(1 * time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(10 * time.Second).
		SetCleanSession(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	c.client = paho.NewClient(pahoOpts)
	return c
}

// Connect connects to the broker and subscribes the given handlers. Subscriptions are
// renewed on every reconnect.
func (c *Client) Connect(ctx context.Context, handlers Handlers) error {
	c.handlers = handlers
	if err := c.wait(ctx, c.client.Connect()); err != nil {
		return errors.Wrap(err, "failed to connect to MQTT broker")
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	if c.client.IsConnected() {
		c.client.Disconnect(250)
		c.logger.Info("MQTT client disconnected")
	}
	return nil
}

// SetVelocity publishes a velocity command.
func (c *Client) SetVelocity(ctx context.Context, linear, angular r3.Vector) error {
	return c.publish(ctx, TopicCmdVel, qosTelemetry, Twist{Linear: vectorFrom(linear), Angular: vectorFrom(angular)})
}

// Stop publishes a zero velocity command.
func (c *Client) Stop(ctx context.Context) error {
	return c.publish(ctx, TopicCmdVel, qosReliable, Twist{})
}

// PublishPath publishes the planned path of a goal.
func (c *Client) PublishPath(ctx context.Context, frame string, path []spatialmath.Pose) error {
	return c.publish(ctx, TopicPath, qosTelemetry, pathMessageFrom(frame, path))
}

// PublishObstacleDistance publishes a collision monitor reading.
func (c *Client) PublishObstacleDistance(ctx context.Context, d collision.Distances) error {
	return c.publish(ctx, TopicObstacleDistance, qosTelemetry, obstacleDistanceMessageFrom(d))
}

// PublishLateralError publishes lateral control telemetry.
func (c *Client) PublishLateralError(ctx context.Context, e movebasic.LateralError) error {
	return c.publish(ctx, TopicLateralError, qosTelemetry,
		LateralErrorMessage{XRemaining: e.XRemaining, Error: e.Error, Rotation: e.Rotation})
}

// PublishStatus publishes a goal status change.
func (c *Client) PublishStatus(ctx context.Context, status action.Status) error {
	return c.publish(ctx, TopicGoalStatus, qosReliable, goalStatusMessageFrom(status))
}

func (c *Client) topic(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + "/" + name
}

func (c *Client) publish(ctx context.Context, name string, qos byte, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "cannot encode %s message", name)
	}
	if !c.client.IsConnected() {
		return ErrNotConnected
	}
	topic := c.topic(name)
	if err := c.wait(ctx, c.client.Publish(topic, qos, false, payload)); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", topic)
	}
	return nil
}

func (c *Client) wait(ctx context.Context, token paho.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}

func (c *Client) onConnect(client paho.Client) {
	c.logger.Info("connected to MQTT broker, subscribing to topics")
	if c.handlers.Goals != nil {
		c.subscribe(client, TopicGoal, c.handleGoal)
		c.subscribe(client, TopicSimpleGoal, c.handleSimpleGoal)
		c.subscribe(client, TopicCancel, c.handleCancel)
	}
	if c.handlers.Transforms != nil {
		c.subscribe(client, TopicTransforms, c.handleTransforms)
	}
	if c.handlers.Points != nil {
		c.subscribe(client, TopicObstaclePoints, c.handleObstaclePoints)
	}
	if c.handlers.Parameters != nil {
		c.subscribe(client, TopicParameters, c.handleParameters)
	}
}

func (c *Client) onConnectionLost(client paho.Client, err error) {
	c.logger.Errorw("MQTT connection lost, reconnecting", "error", err)
}

func (c *Client) subscribe(client paho.Client, name string, handle func(payload []byte) error) {
	topic := c.topic(name)
	token := client.Subscribe(topic, qosReliable, func(_ paho.Client, msg paho.Message) {
		if err := handle(msg.Payload()); err != nil {
			c.logger.Warnw("cannot handle message", "topic", msg.Topic(), "error", err)
		}
	})
	if token.Wait() && token.Error() != nil {
		c.logger.Errorw("failed to subscribe to topic", "topic", topic, "error", token.Error())
		return
	}
	c.logger.Debugw("subscribed to topic", "topic", topic)
}

func (c *Client) handleGoal(payload []byte) error {
	var msg GoalMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return errors.Wrap(err, "cannot decode goal")
	}
	return c.submit(msg)
}

// handleSimpleGoal accepts a bare stamped pose as a goal.
func (c *Client) handleSimpleGoal(payload []byte) error {
	var msg PoseStamped
	if err := json.Unmarshal(payload, &msg); err != nil {
		return errors.Wrap(err, "cannot decode simple goal")
	}
	return c.submit(GoalMessage{TargetPose: msg})
}

func (c *Client) submit(msg GoalMessage) error {
	goal, err := msg.goal()
	if err != nil {
		return err
	}
	id, err := c.handlers.Goals.Submit(goal)
	if err != nil {
		return errors.Wrap(err, "goal rejected")
	}
	c.logger.Infow("goal queued", "id", id, "frame", goal.FrameID)
	return nil
}

func (c *Client) handleCancel(payload []byte) error {
	var msg CancelMessage
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			return errors.Wrap(err, "cannot decode cancel request")
		}
	}
	if msg.ID == "" {
		c.handlers.Goals.CancelAll()
		return nil
	}
	id, err := uuid.Parse(msg.ID)
	if err != nil {
		return errors.Wrapf(err, "invalid goal id %q", msg.ID)
	}
	return c.handlers.Goals.Cancel(id)
}

func (c *Client) handleTransforms(payload []byte) error {
	var msg TransformsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return errors.Wrap(err, "cannot decode transforms")
	}
	var err error
	for _, tf := range msg.Transforms {
		child := strings.TrimPrefix(tf.ChildFrameID, "/")
		parent := strings.TrimPrefix(tf.FrameID, "/")
		if tf.Static {
			err = multierr.Combine(err, c.handlers.Transforms.SetStaticTransform(child, parent, tf.Transform.pose()))
		} else {
			err = multierr.Combine(err, c.handlers.Transforms.SetTransform(child, parent, tf.Transform.pose()))
		}
	}
	return err
}

func (c *Client) handleObstaclePoints(payload []byte) error {
	var msg ObstaclePointsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return errors.Wrap(err, "cannot decode obstacle points")
	}
	points := make([]r3.Vector, 0, len(msg.Points))
	for _, p := range msg.Points {
		points = append(points, p.vector())
	}
	c.handlers.Points.SetPoints(points)
	return nil
}

func (c *Client) handleParameters(payload []byte) error {
	var attrs map[string]interface{}
	if err := json.Unmarshal(payload, &attrs); err != nil {
		return errors.Wrap(err, "cannot decode parameters")
	}
	_, err := c.handlers.Parameters.Merge(attrs)
	return err
}
